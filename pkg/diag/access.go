package diag

func InsertCycleRecord(r *CycleRecord) error {
	db := GetDB()

	_, err := db.Exec(
		"INSERT INTO cycle_history (timestamp, cycle_id, apdu_size, value_count, success) "+
			"VALUES (?, ?, ?, ?, ?)",
		r.Timestamp,
		r.CycleID,
		r.APDUSize,
		r.ValueCount,
		r.Success,
	)
	return err
}

// LoadCounters reads the single persisted counters row.
func LoadCounters() (Counters, error) {
	db := GetDB()

	var c Counters
	err := db.QueryRow(
		"SELECT read_loops, send_failures FROM cumulative_counters WHERE id = 1",
	).Scan(&c.ReadLoops, &c.SendFailures)
	return c, err
}

// SaveCounters overwrites the single persisted counters row.
func SaveCounters(c Counters) error {
	db := GetDB()

	_, err := db.Exec(
		"UPDATE cumulative_counters SET read_loops = ?, send_failures = ? WHERE id = 1",
		c.ReadLoops,
		c.SendFailures,
	)
	return err
}
