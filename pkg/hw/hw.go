// Package hw declares the hardware-abstraction interfaces the cycle driver
// depends on: power switching for the M-Bus adapter, wake timing, and the
// watchdog. Concrete implementations are board-specific and out of scope;
// this package ships only the interfaces plus a fake set good enough for
// bench runs and tests.
package hw

import "time"

// PowerSwitch turns the M-Bus adapter's supply rail on or off. A cycle
// powers the adapter on before opening the UART and off again once the
// cycle ends, win or lose.
type PowerSwitch interface {
	PowerOn() error
	PowerOff() error
}

// WakeTimer schedules the next wake from whatever low-power state the
// gateway sleeps in between cycles.
type WakeTimer interface {
	SleepUntilNextWake(interval time.Duration)
}

// Watchdog must be kicked periodically or the board resets. Kick is called
// once per cycle, win or lose, so a stuck cycle eventually reboots the
// gateway rather than stranding it.
type Watchdog interface {
	Kick()
}

// Fake is an in-memory PowerSwitch, WakeTimer, and Watchdog for bench runs
// and tests, where there's no real board to drive.
type Fake struct {
	Powered    bool
	KickCount  int
	LastWakeIn time.Duration
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) PowerOn() error {
	f.Powered = true
	return nil
}

func (f *Fake) PowerOff() error {
	f.Powered = false
	return nil
}

func (f *Fake) SleepUntilNextWake(interval time.Duration) {
	f.LastWakeIn = interval
}

func (f *Fake) Kick() {
	f.KickCount++
}

// Reboot stands in for a board restart by clearing KickCount; bench runs
// can't actually restart the process and don't need to.
func (f *Fake) Reboot() {
	f.KickCount = 0
}
