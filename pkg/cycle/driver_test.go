package cycle

import (
	"io"
	"testing"
	"time"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/hw"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uart"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uplink"
	"github.com/sigurn/crc16"
)

// --- fakes -------------------------------------------------------------

type erroringPort struct{}

func (erroringPort) ReadByte() (byte, error) { return 0, io.EOF }
func (erroringPort) Close() error            { return nil }

type streamPort struct {
	data []byte
	pos  int
}

func (p *streamPort) ReadByte() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, io.EOF
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}
func (p *streamPort) Close() error { return nil }

type capturingSink struct {
	buf  []byte
	sent int
}

func (s *capturingSink) Ready() bool { return true }
func (s *capturingSink) Send(buf []byte) error {
	s.buf = append([]byte{}, buf...)
	s.sent++
	return nil
}

type fakeBattery struct{ mv uint16 }

func (b fakeBattery) ReadMillivolts() (uint16, error) { return b.mv, nil }

// --- test helpers --------------------------------------------------------

var fcsParams = crc16.Params{
	Poly: 0x1021, Init: 0xFFFF, RefIn: true, RefOut: true, XorOut: 0x0000,
	Name: "test-fcs",
}
var fcsTable = crc16.MakeTable(fcsParams)

// buildFrame wraps headerAndInfo (the 8-byte HDLC header followed by the
// LLC/GBT info field) into a flag-delimited, FCS-terminated HDLC frame. The
// byte content used in these tests never needs escaping.
func buildFrame(headerAndInfo []byte) []byte {
	computed := crc16.Checksum(headerAndInfo, fcsTable)
	complement := computed ^ 0xFFFF
	lo := byte(complement)
	hi := byte(complement >> 8)

	raw := []byte{0x7E}
	raw = append(raw, headerAndInfo...)
	raw = append(raw, lo, hi, 0x7E)
	return raw
}

func newTestDriver() *Driver {
	d := NewDriver()
	d.Power = hw.NewFake()
	d.Wake = hw.NewFake()
	d.Watchdog = hw.NewFake()
	return d
}

// --- tests -----------------------------------------------------------

func TestDriver_CycleTimeout_TelemetryOnlyNoAPDU(t *testing.T) {
	d := newTestDriver()
	sink := &capturingSink{}
	d.Sink = sink
	d.Battery = fakeBattery{mv: 3300}
	d.OpenPort = func(uart.Config) (uart.Port, error) { return erroringPort{}, nil }

	d.RunCycle(Settings{CycleTimeoutMS: 50, MeasureIntervalMS: 1})

	if d.lastAPDU != nil {
		t.Fatal("no APDU should have been reassembled")
	}
	if sink.sent != 1 {
		t.Fatalf("sink.sent = %d, want 1", sink.sent)
	}

	want := []byte{
		uplink.DiagnosticChannel, uplink.TypeBatteryVoltageMV, 0x0C, 0xE4, // 3300 mV
		uplink.DiagnosticChannel, uplink.TypeReadLoopCounter, 0x00, 0x00, 0x00, 0x01,
		uplink.DiagnosticChannel, uplink.TypeSendFailureCounter, 0x00, 0x00,
	}
	if string(sink.buf) != string(want) {
		t.Errorf("uplink buffer = % X, want % X (only the three telemetry triplets)", sink.buf, want)
	}
}

func TestDriver_FullCycle_ExtractsMeasurementsAndTelemetry(t *testing.T) {
	header := []byte{0xA0, 0x07, 0x83, 0x13, 0x02, 0x23, 0x13, 0x00}
	llc := []byte{0xE6, 0xE7, 0x00}

	descriptor := []byte{0x09, 0x06, 0x00, 0x08, 0x19, 0x09, 0x00, 0xFF}
	name := []byte{0x09, 0x06, 'L', 'G', 'E', 'M', '0', '1'}
	// descriptor occupies position 0, name position 1; the extractor's
	// cursor lands at descIdx+14, so the filler run between name and the
	// measurement region is 14-2 = 12 entries.
	var filler []byte
	for i := 0; i < 12; i++ {
		filler = append(filler, 0x0F, 0x00)
	}
	measurement1 := []byte{0x12, 0x00, 0x64}       // u16 = 100
	measurement2 := []byte{0x06, 0x00, 0x00, 0x00, 0xC8} // u32 = 200

	apdu := append([]byte{}, descriptor...)
	apdu = append(apdu, name...)
	apdu = append(apdu, filler...)
	apdu = append(apdu, measurement1...)
	apdu = append(apdu, measurement2...)

	gbtBlock := []byte{0xE0, 0x80, 0x00, 0x01, 0x00, 0x00, byte(len(apdu))}
	gbtBlock = append(gbtBlock, apdu...)

	info := append([]byte{}, header...)
	info = append(info, llc...)
	info = append(info, gbtBlock...)

	raw := buildFrame(info)

	d := newTestDriver()
	sink := &capturingSink{}
	d.Sink = sink
	d.OpenPort = func(uart.Config) (uart.Port, error) { return &streamPort{data: raw}, nil }

	d.RunCycle(Settings{CycleTimeoutMS: 5000, MeasureIntervalMS: 1})

	if d.lastAPDU == nil {
		t.Fatal("expected an APDU to have been reassembled")
	}
	if d.lastInfo.LogicalDeviceName != "LGEM01" {
		t.Errorf("LogicalDeviceName = %q, want %q", d.lastInfo.LogicalDeviceName, "LGEM01")
	}
	if sink.sent != 1 {
		t.Fatalf("sink.sent = %d, want 1", sink.sent)
	}

	const lgMeasurementChannel = 10 // pkg/lgmeter's fixed measurement channel
	wantPrefix := []byte{
		lgMeasurementChannel, 0x00, uplink.TypeU16, 0x00, 0x64,
		lgMeasurementChannel, 0x01, uplink.TypeU32, 0x00, 0x00, 0x00, 0xC8,
	}
	if len(sink.buf) < len(wantPrefix) || string(sink.buf[:len(wantPrefix)]) != string(wantPrefix) {
		t.Errorf("uplink buffer prefix = % X, want % X", sink.buf, wantPrefix)
	}
}

func TestDriver_FullCycle_RawGBTAPDUModeForwardsAPDU(t *testing.T) {
	header := []byte{0xA0, 0x07, 0x83, 0x13, 0x02, 0x23, 0x13, 0x00}
	llc := []byte{0xE6, 0xE7, 0x00}
	apdu := []byte{0x01, 0x02, 0x03, 0x04}

	gbtBlock := []byte{0xE0, 0x80, 0x00, 0x01, 0x00, 0x00, byte(len(apdu))}
	gbtBlock = append(gbtBlock, apdu...)

	info := append([]byte{}, header...)
	info = append(info, llc...)
	info = append(info, gbtBlock...)

	raw := buildFrame(info)

	d := newTestDriver()
	sink := &capturingSink{}
	d.Sink = sink
	d.OpenPort = func(uart.Config) (uart.Port, error) { return &streamPort{data: raw}, nil }

	d.RunCycle(Settings{CycleTimeoutMS: 5000, MeasureIntervalMS: 1, SendDataType: uplink.SendDataRawGBTAPDU})

	if d.lastAPDU == nil {
		t.Fatal("expected an APDU to have been reassembled")
	}
	if sink.sent != 1 {
		t.Fatalf("sink.sent = %d, want 1", sink.sent)
	}
	if len(sink.buf) < len(apdu) || string(sink.buf[:len(apdu)]) != string(apdu) {
		t.Errorf("uplink buffer = % X, want it to start with the raw APDU % X", sink.buf, apdu)
	}
}

func TestDriver_LoadPersistedCounters(t *testing.T) {
	d := newTestDriver()
	d.Store = fakeStore{counters: Counters{ReadLoops: 42, SendFailures: 3}}
	d.LoadPersistedCounters()

	if d.counters.ReadLoops != 42 || d.counters.SendFailures != 3 {
		t.Errorf("counters = %+v, want ReadLoops=42 SendFailures=3", d.counters)
	}
}

type fakeStore struct{ counters Counters }

func (f fakeStore) LoadCounters() (Counters, error)          { return f.counters, nil }
func (f fakeStore) SaveCounters(Counters) error               { return nil }
func (f fakeStore) RecordCycle(string, int, int, bool) error  { return nil }

func TestDriver_SinkNotReadySkipsFlushButStillSleeps(t *testing.T) {
	d := newTestDriver()
	wake := hw.NewFake()
	d.Wake = wake
	sink := &notReadySink{}
	d.Sink = sink
	d.OpenPort = func(uart.Config) (uart.Port, error) { return erroringPort{}, nil }

	d.RunCycle(Settings{CycleTimeoutMS: 20, MeasureIntervalMS: 123})

	if sink.sent != 0 {
		t.Error("a not-ready sink should never be sent to")
	}
	if wake.LastWakeIn != 123*time.Millisecond {
		t.Errorf("LastWakeIn = %v, want 123ms", wake.LastWakeIn)
	}
}

type notReadySink struct{ sent int }

func (s *notReadySink) Ready() bool         { return false }
func (s *notReadySink) Send([]byte) error   { s.sent++; return nil }
