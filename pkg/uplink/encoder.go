// Package uplink implements the Cayenne-LPP-style uplink encoder the LG
// extractor writes into, and the symmetric downlink settings decoder for
// the same channel.
package uplink

import (
	"errors"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/axdr"
)

const (
	// TypeU8 .. TypeString are the LPP type codes for extractor measurements.
	TypeU8     = 1
	TypeU16    = 2
	TypeU32    = 3
	TypeString = 4

	// Reserved telemetry type codes, per spec.md §6.
	TypeBatteryVoltageMV    = 200
	TypeReadLoopCounter     = 201
	TypeSendFailureCounter  = 202

	// DiagnosticChannel carries the three telemetry triplets; spec.md does
	// not assign them a channel number, so this module reserves one.
	DiagnosticChannel = 0

	// MaxBufferSize is the encoder's fixed capacity.
	MaxBufferSize = 250
)

// ErrBufferFull is returned once the encoder's capacity has been exceeded;
// per spec this is a soft failure — the caller keeps running, it just stops
// accepting new values for the rest of the cycle.
var ErrBufferFull = errors.New("uplink: encoder buffer full")

// Encoder packs measurement and telemetry values into the fixed-size
// uplink buffer. It is reset once per cycle by the driver before the
// extractor runs.
type Encoder struct {
	buf     []byte
	seq     byte
	failed  bool
}

// NewEncoder returns an encoder with MaxBufferSize capacity.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, MaxBufferSize)}
}

// Reset clears the buffer and error flag for a new cycle.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.seq = 0
	e.failed = false
}

// Bytes returns the encoded buffer built so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Failed reports whether the encoder has refused a write due to overflow.
func (e *Encoder) Failed() bool {
	return e.failed
}

func (e *Encoder) append(entry []byte) error {
	if e.failed {
		return ErrBufferFull
	}
	if len(e.buf)+len(entry) > MaxBufferSize {
		e.failed = true
		return ErrBufferFull
	}
	e.buf = append(e.buf, entry...)
	return nil
}

// EncodeValue writes one extractor measurement: channel, sequence index,
// type code, then the value in big-endian (strings are null-terminated).
func (e *Encoder) EncodeValue(channel byte, v axdr.Value) error {
	typeCode, body := encodeScalar(v)
	entry := make([]byte, 0, 3+len(body))
	entry = append(entry, channel, e.seq, typeCode)
	entry = append(entry, body...)
	if err := e.append(entry); err != nil {
		return err
	}
	e.seq++
	return nil
}

// EncodeRaw appends apdu verbatim to the buffer, with no channel/type
// framing of its own. Used by the "raw GBT APDU" send-data-type (spec.md
// §6), where the operator wants the meter's reassembled APDU forwarded
// as-is instead of parsed into typed measurements.
func (e *Encoder) EncodeRaw(apdu []byte) error {
	return e.append(apdu)
}

// EncodeBatteryVoltage writes the type-200 battery voltage telemetry triplet.
func (e *Encoder) EncodeBatteryVoltage(millivolts uint16) error {
	return e.append(triplet(DiagnosticChannel, TypeBatteryVoltageMV, be16(millivolts)))
}

// EncodeReadLoopCounter writes the type-201 cumulative read-loop counter.
func (e *Encoder) EncodeReadLoopCounter(count uint32) error {
	return e.append(triplet(DiagnosticChannel, TypeReadLoopCounter, be32(count)))
}

// EncodeSendFailureCounter writes the type-202 cumulative send-failure counter.
func (e *Encoder) EncodeSendFailureCounter(count uint16) error {
	return e.append(triplet(DiagnosticChannel, TypeSendFailureCounter, be16(count)))
}

func triplet(channel byte, typeCode byte, body []byte) []byte {
	entry := make([]byte, 0, 2+len(body))
	entry = append(entry, channel, typeCode)
	return append(entry, body...)
}

func be16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
