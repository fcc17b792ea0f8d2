// Package cycle runs one wake-read-send pass of the gateway: power the
// M-Bus adapter on, read the meter's unsolicited HDLC push byte by byte
// through the parsing pipeline, then flush whatever the extractor produced
// to the uplink sink before sleeping until the next wake.
package cycle

import (
	"time"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/axdr"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/cipher"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/dlmsrouter"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/gbt"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/hdlc"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/hw"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/lgmeter"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uart"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uplink"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const idleSleep = 100 * time.Millisecond

// Settings is the subset of the persisted configuration record the driver
// consults at cycle start. It's read once per cycle and never mutated
// while the cycle runs; operator commands change it only between cycles.
type Settings struct {
	MeasureIntervalMS uint32
	CycleTimeoutMS    uint32
	SendDataType      uplink.SendDataType
	DecryptionEnabled bool
	AESKey            []byte
	SystemTitle       [8]byte
	FrameCounter      uint32
}

// UplinkSink delivers a finished uplink buffer somewhere upstream. Ready
// reports whether the sink is currently reachable; the driver skips the
// flush (but still kicks the watchdog and sleeps) when it isn't.
type UplinkSink interface {
	Ready() bool
	Send(buf []byte) error
}

// Counters tracks the cumulative telemetry the driver appends to every
// uplink buffer, surviving across cycles for as long as the process runs.
type Counters struct {
	ReadLoops    uint32
	SendFailures uint16
}

// BatteryReader reads the current battery rail voltage in millivolts.
// Hardware-specific; out of scope beyond this interface.
type BatteryReader interface {
	ReadMillivolts() (uint16, error)
}

// Rebooter restarts the board. The driver calls it after exhausting the
// uplink send retry budget, per the "after N failures, reboot" policy.
type Rebooter interface {
	Reboot()
}

// Store persists cumulative counters and per-cycle history across
// restarts. pkg/diag implements it; a nil Store leaves counters
// process-lifetime only.
type Store interface {
	LoadCounters() (Counters, error)
	SaveCounters(Counters) error
	RecordCycle(cycleID string, apduSize, valueCount int, success bool) error
}

// Monitor reports pipeline stage transitions for live debugging.
// pkg/monitor.Hub implements it via a Broadcast adapter.
type Monitor interface {
	Report(stage, detail string)
}

// Driver wires the parsing pipeline to hardware and the uplink sink and
// runs one cycle at a time.
type Driver struct {
	Power    hw.PowerSwitch
	Wake     hw.WakeTimer
	Watchdog hw.Watchdog
	Reboot   Rebooter
	Battery  BatteryReader
	Sink     UplinkSink
	Store    Store
	Monitor  Monitor

	UARTConfig uart.Config

	// OpenPort opens the UART port. Defaults to uart.Open; tests substitute
	// a fake so a cycle can be driven without a real serial device.
	OpenPort func(uart.Config) (uart.Port, error)

	counters Counters

	deframer       *hdlc.Deframer
	reassembler    *gbt.Reassembler
	router         *dlmsrouter.Router
	encoder        *uplink.Encoder
	lastInfo       lgmeter.Info
	lastAPDU       []byte
	lastValueCount int
	cycleID        string
}

func (d *Driver) report(stage, detail string) {
	if d.Monitor != nil {
		d.Monitor.Report(stage, detail)
	}
}

// NewDriver wires the pipeline stages together: deframer feeds the router,
// the router feeds the reassembler, and the reassembler's completed APDU is
// captured for the A-XDR parse once the cycle's read loop exits.
func NewDriver() *Driver {
	d := &Driver{
		deframer: hdlc.NewDeframer(),
		encoder:  uplink.NewEncoder(),
		OpenPort: uart.Open,
	}
	d.reassembler = gbt.NewReassembler(apduCapture{d})
	d.router = dlmsrouter.NewRouter(d.reassembler)
	return d
}

// LoadPersistedCounters seeds the driver's in-memory counters from Store,
// so a reboot doesn't reset the cumulative telemetry to zero. Call once
// after setting d.Store and before the first RunCycle.
func (d *Driver) LoadPersistedCounters() {
	if d.Store == nil {
		return
	}
	c, err := d.Store.LoadCounters()
	if err != nil {
		logrus.WithError(err).Warn("cycle: failed to load persisted counters")
		return
	}
	d.counters = c
}

// apduCapture adapts Driver to gbt.APDUSink without exposing PushAPDU on
// the driver's own public surface.
type apduCapture struct{ d *Driver }

func (c apduCapture) PushAPDU(apdu []byte) {
	c.d.lastAPDU = apdu
	c.d.report("gbt", "apdu complete")
}

// WithDecryption installs the optional GCM-AES pre-stage ahead of GBT
// routing, keyed from cfg. A zero-length key leaves decryption off.
func (d *Driver) WithDecryption(cfg Settings) {
	if !cfg.DecryptionEnabled || len(cfg.AESKey) == 0 {
		return
	}
	d.router.WithDecrypter(&cipher.Unwrapper{
		Key:          cfg.AESKey,
		SystemTitle:  cfg.SystemTitle,
		FrameCounter: cfg.FrameCounter,
	})
}

// RunCycle performs one full wake-read-send pass. It never returns an
// error that the caller must act on: every failure mode here is handled by
// the next cycle's reset, per the pipeline's self-recovery design.
func (d *Driver) RunCycle(cfg Settings) {
	timeout := time.Duration(cfg.CycleTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	d.cycleID = uuid.New().String()
	log := logrus.WithField("cycle_id", d.cycleID)

	d.encoder.Reset()
	d.lastAPDU = nil
	d.lastValueCount = 0
	d.reassembler.StartCycle()
	d.report("cycle", "start")

	if err := d.Power.PowerOn(); err != nil {
		log.WithError(err).Error("cycle: power on failed")
		d.finish(cfg, timeout)
		return
	}

	port, err := d.OpenPort(d.UARTConfig)
	if err != nil {
		log.WithError(err).Error("cycle: uart open failed")
		d.Power.PowerOff()
		d.finish(cfg, timeout)
		return
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.reassembler.Complete() {
			break
		}

		b, rerr := port.ReadByte()
		if rerr != nil {
			time.Sleep(idleSleep)
			continue
		}

		frame, closed := d.deframer.PushByte(b)
		if closed {
			if !frame.Valid {
				d.report("hdlc", "invalid frame")
			}
			d.router.HandleFrame(frame.Payload, frame.Valid)
		}
	}

	port.Close()
	if err := d.Power.PowerOff(); err != nil {
		log.WithError(err).Warn("cycle: power off failed")
	}

	d.counters.ReadLoops++

	if d.lastAPDU != nil {
		d.extract(cfg)
	}
	d.appendTelemetry()
	d.record()

	d.finish(cfg, timeout)
}

func (d *Driver) record() {
	if d.Store == nil {
		return
	}
	log := logrus.WithField("cycle_id", d.cycleID)
	if err := d.Store.SaveCounters(d.counters); err != nil {
		log.WithError(err).Warn("cycle: failed to save counters")
	}

	apduSize := len(d.lastAPDU)
	if err := d.Store.RecordCycle(d.cycleID, apduSize, d.lastValueCount, apduSize > 0); err != nil {
		log.WithError(err).Warn("cycle: failed to record cycle history")
	}
}

func (d *Driver) extract(cfg Settings) {
	if cfg.SendDataType == uplink.SendDataRawGBTAPDU {
		if err := d.encoder.EncodeRaw(d.lastAPDU); err != nil {
			logrus.WithField("cycle_id", d.cycleID).WithError(err).Warn("cycle: raw APDU forward failed")
		}
		return
	}

	result := axdr.Parse(d.lastAPDU)
	d.lastValueCount = len(result.Values)
	info, err := lgmeter.Extract(result.Values, d.encoder)
	if err != nil {
		logrus.WithField("cycle_id", d.cycleID).WithError(err).Warn("cycle: extraction failed")
		return
	}
	d.lastInfo = info
}

func (d *Driver) appendTelemetry() {
	if d.Battery != nil {
		if mv, err := d.Battery.ReadMillivolts(); err == nil {
			d.encoder.EncodeBatteryVoltage(mv)
		}
	}
	d.encoder.EncodeReadLoopCounter(d.counters.ReadLoops)
	d.encoder.EncodeSendFailureCounter(d.counters.SendFailures)
}

func (d *Driver) finish(cfg Settings, timeout time.Duration) {
	d.flush()
	d.Watchdog.Kick()
	interval := time.Duration(cfg.MeasureIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 900 * time.Second
	}
	d.Wake.SleepUntilNextWake(interval)
}

const maxSendRetries = 3

func (d *Driver) flush() {
	if d.Sink == nil || !d.Sink.Ready() {
		return
	}

	buf := d.encoder.Bytes()
	if len(buf) == 0 {
		return
	}

	var lastErr error
	for attempt := 0; attempt < maxSendRetries; attempt++ {
		if err := d.Sink.Send(buf); err != nil {
			lastErr = err
			d.counters.SendFailures++
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}
		return
	}
	logrus.WithError(lastErr).WithFields(logrus.Fields{"cycle_id": d.cycleID, "attempts": maxSendRetries}).Error("cycle: uplink send failed")
	if d.Reboot != nil {
		d.Reboot.Reboot()
	}
}

// Counters returns a snapshot of the driver's cumulative telemetry.
func (d *Driver) Counters() Counters {
	return d.counters
}

// LastMeterInfo returns the logical device name extracted during the most
// recent successful cycle, or the zero value if none has succeeded yet.
func (d *Driver) LastMeterInfo() lgmeter.Info {
	return d.lastInfo
}
