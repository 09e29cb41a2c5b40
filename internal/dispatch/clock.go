package dispatch

import "sync/atomic"

// Clock stamps committed deliveries.
//
// Implementations must return strictly increasing values and be safe for
// concurrent use.
type Clock interface {
	Next() int64
}

// LogicalClock is a monotonic counter used to stamp deliveries.
//
// All deliveries are stamped with a strictly increasing value from this clock,
// never with wall-clock time, so journals and traces sort deterministically.
//
// Thread-safety: LogicalClock is safe for concurrent use (atomic operations).
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a new clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// NewLogicalClockAt creates a clock whose next value is start+1.
// Used when resuming stamps after a journal that already holds start.
func NewLogicalClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next stamp and increments the clock.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last stamp handed out without incrementing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
