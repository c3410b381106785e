package engine

import "sync/atomic"

// Clock is the logical clock stamping engine events.
//
// Every emitted event carries a strictly increasing seq from this clock, and
// the audit log orders by (session, seq), never by wall time. The same
// inputs therefore yield the same log.
//
// Thread-safety: Clock is safe for concurrent use, although the engine only
// calls Next from its control goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to resume a session
// from the last seq recorded in the event log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
