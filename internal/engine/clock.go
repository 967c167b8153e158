package engine

import "sync/atomic"

// Clock is a monotonic logical clock for trace ordering.
//
// Every trace event is stamped with a strictly increasing seq number from
// this clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Identical traces for identical runs, enabling golden comparison
// - Explicit causal relationships between enqueue, start, and settle
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the single drain loop is normally the only caller of Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used when resuming trace recording against an existing store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
