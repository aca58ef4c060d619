package buffer

import "sync/atomic"

// Stats is a snapshot of the buffer's running totals.
type Stats struct {
	Arrived   int64 // records passed to RecordArrived for a known destination
	Invalid   int64 // single commits rejected by validation
	Committed int64 // single commits that reached the store
	Batches   int64 // bulk writes that succeeded
	Fallbacks int64 // bulk writes that failed and were retried row by row
	Written   int64 // rows persisted by flushes
	Dropped   int64 // rows lost after the individual fallback
}

type counters struct {
	arrived, invalid, committed atomic.Int64
	batches, fallbacks          atomic.Int64
	written, dropped            atomic.Int64
}

// Stats returns the current totals.
func (b *Buffer) Stats() Stats {
	c := &b.stats
	return Stats{
		Arrived:   c.arrived.Load(),
		Invalid:   c.invalid.Load(),
		Committed: c.committed.Load(),
		Batches:   c.batches.Load(),
		Fallbacks: c.fallbacks.Load(),
		Written:   c.written.Load(),
		Dropped:   c.dropped.Load(),
	}
}
