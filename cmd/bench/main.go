// Bench replays a captured HDLC byte dump through the parsing pipeline
// offline, without any hardware or serial port, for development and
// regression testing against recorded meter pushes.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/axdr"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/dlmsrouter"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/gbt"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/hdlc"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/lgmeter"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uplink"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

type capture struct {
	apdu []byte
}

func (c *capture) PushAPDU(apdu []byte) {
	c.apdu = apdu
}

func main() {
	inputPath := flag.String("in", "", "path to a hex-encoded HDLC byte dump")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("bench: -in is required")
	}

	raw, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("bench: failed to read %s: %v", *inputPath, err)
	}

	stream, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		log.Fatalf("bench: input is not valid hex: %v", err)
	}

	runID := uuid.New()
	start := time.Now()

	cap := &capture{}
	reassembler := gbt.NewReassembler(cap)
	router := dlmsrouter.NewRouter(reassembler)
	deframer := hdlc.NewDeframer()

	frameCount := 0
	for _, b := range stream {
		frame, closed := deframer.PushByte(b)
		if !closed {
			continue
		}
		frameCount++
		router.HandleFrame(frame.Payload, frame.Valid)
	}

	elapsed := time.Since(start)
	fmt.Printf("run %s: fed %s bytes across %d frames in %s\n",
		runID, humanize.Comma(int64(len(stream))), frameCount, elapsed)

	if cap.apdu == nil {
		fmt.Println("no APDU reassembled")
		return
	}

	result := axdr.Parse(cap.apdu)
	fmt.Printf("apdu: %s bytes, %d values, %d unknown tags\n",
		humanize.Comma(int64(len(cap.apdu))), len(result.Values), result.UnknownCount)

	enc := uplink.NewEncoder()
	info, err := lgmeter.Extract(result.Values, enc)
	if err != nil {
		fmt.Printf("extraction failed: %v\n", err)
		return
	}

	fmt.Printf("device: %s\n", info.LogicalDeviceName)
	fmt.Printf("uplink buffer: %s bytes\n", humanize.Comma(int64(len(enc.Bytes()))))
}
