package diag

// CycleRecord is one row of cycle history: when it ran, how big the
// reassembled APDU was, how many typed values the parser produced, and
// whether the cycle completed with an APDU at all. CycleID is the UUID the
// driver generated at cycle start, letting a row here be matched back to
// the structured log lines from the same cycle.
type CycleRecord struct {
	Timestamp  int64  `db:"timestamp"`
	CycleID    string `db:"cycle_id"`
	APDUSize   int    `db:"apdu_size"`
	ValueCount int    `db:"value_count"`
	Success    bool   `db:"success"`
}

// Counters is the persisted cumulative telemetry, mirroring
// pkg/cycle.Counters but surviving process restarts.
type Counters struct {
	ReadLoops    uint32 `db:"read_loops"`
	SendFailures uint32 `db:"send_failures"`
}
