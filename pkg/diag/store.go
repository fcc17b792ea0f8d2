package diag

import (
	"time"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/cycle"
)

// CycleStore adapts the diagnostics database to cycle.Store, letting the
// driver's cumulative counters and per-cycle history survive a reboot.
type CycleStore struct{}

func (CycleStore) LoadCounters() (cycle.Counters, error) {
	c, err := LoadCounters()
	if err != nil {
		return cycle.Counters{}, err
	}
	return cycle.Counters{
		ReadLoops:    c.ReadLoops,
		SendFailures: uint16(c.SendFailures),
	}, nil
}

func (CycleStore) SaveCounters(c cycle.Counters) error {
	return SaveCounters(Counters{
		ReadLoops:    c.ReadLoops,
		SendFailures: uint32(c.SendFailures),
	})
}

func (CycleStore) RecordCycle(cycleID string, apduSize, valueCount int, success bool) error {
	return InsertCycleRecord(&CycleRecord{
		Timestamp:  time.Now().Unix(),
		CycleID:    cycleID,
		APDUSize:   apduSize,
		ValueCount: valueCount,
		Success:    success,
	})
}
