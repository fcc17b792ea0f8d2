package lgmeter

import (
	"testing"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/axdr"
)

type capturingEncoder struct {
	calls []axdr.Value
}

func (e *capturingEncoder) EncodeValue(channel byte, v axdr.Value) error {
	if channel != measurementChannel {
		panic("unexpected channel")
	}
	e.calls = append(e.calls, v)
	return nil
}

// buildValues assembles a value list matching the LG capability descriptor
// layout: descriptor OBIS, device name, a run of filler fields the
// extractor skips unconditionally, then the measurement region.
//
// The measurement region starts at descIdx+descriptorSkip (14 positions
// past the descriptor entry itself, per the original smlg450.cpp's
// `index += 14` taken from the descriptor's own position, not the name's).
// The descriptor occupies position 0 and the name position 1, so the
// filler run between them and the measurement region is descriptorSkip-2
// entries long.
func buildValues(deviceName string, measurements ...axdr.Value) []axdr.Value {
	values := []axdr.Value{
		{Kind: axdr.KindString, Str: descriptorOBIS},
		{Kind: axdr.KindString, Str: deviceName},
	}
	for i := 0; i < descriptorSkip-2; i++ {
		values = append(values, axdr.Value{Kind: axdr.KindU8, U8: 0})
	}
	return append(values, measurements...)
}

func TestExtract_DeviceNameAndMeasurements(t *testing.T) {
	values := buildValues("LGE-METER-01",
		axdr.Value{Kind: axdr.KindU16, U16: 100},
		axdr.Value{Kind: axdr.KindU32, U32: 200},
	)

	enc := &capturingEncoder{}
	info, err := Extract(values, enc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if info.LogicalDeviceName != "LGE-METER-01" {
		t.Errorf("LogicalDeviceName = %q", info.LogicalDeviceName)
	}
	if len(enc.calls) != 2 {
		t.Fatalf("encoded values = %d, want 2", len(enc.calls))
	}
	if enc.calls[0].U16 != 100 || enc.calls[1].U32 != 200 {
		t.Errorf("encoded values = %+v", enc.calls)
	}
}

func TestExtract_SkipsStructMetaGroup(t *testing.T) {
	values := buildValues("LGE-METER-02",
		axdr.Value{Kind: axdr.KindU16, U16: 111},
		axdr.Value{Kind: axdr.KindU8, U8: 1, StructDepth: descriptorMetaDepth},
		axdr.Value{Kind: axdr.KindU8, U8: 2, StructDepth: descriptorMetaDepth},
		axdr.Value{Kind: axdr.KindU8, U8: 3, StructDepth: descriptorMetaDepth},
		axdr.Value{Kind: axdr.KindU8, U8: 4, StructDepth: descriptorMetaDepth},
		axdr.Value{Kind: axdr.KindU16, U16: 222},
	)

	enc := &capturingEncoder{}
	if _, err := Extract(values, enc); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(enc.calls) != 2 {
		t.Fatalf("encoded values = %d, want 2 (the 4 meta fields should be skipped as a block)", len(enc.calls))
	}
	if enc.calls[0].U16 != 111 || enc.calls[1].U16 != 222 {
		t.Errorf("encoded values = %+v", enc.calls)
	}
}

func TestExtract_DescriptorNotFound(t *testing.T) {
	values := []axdr.Value{{Kind: axdr.KindU16, U16: 1}}
	_, err := Extract(values, &capturingEncoder{})
	if err != ErrDescriptorNotFound {
		t.Errorf("err = %v, want ErrDescriptorNotFound", err)
	}
}

func TestExtract_DescriptorMalformed(t *testing.T) {
	values := []axdr.Value{
		{Kind: axdr.KindString, Str: descriptorOBIS},
		{Kind: axdr.KindU16, U16: 1}, // name slot is not a string
	}
	_, err := Extract(values, &capturingEncoder{})
	if err != ErrDescriptorMalformed {
		t.Errorf("err = %v, want ErrDescriptorMalformed", err)
	}
}

func TestExtract_DeviceNameTruncated(t *testing.T) {
	longName := make([]byte, maxDeviceNameLen+20)
	for i := range longName {
		longName[i] = 'x'
	}
	values := buildValues(string(longName))

	info, err := Extract(values, &capturingEncoder{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(info.LogicalDeviceName) != maxDeviceNameLen {
		t.Errorf("LogicalDeviceName length = %d, want %d", len(info.LogicalDeviceName), maxDeviceNameLen)
	}
}
