package ledger

import "sync/atomic"

// Sequencer hands out receipt-order sequence numbers for ledger events.
type Sequencer interface {
	Next() int64
	Current() int64
	// Advance moves the sequencer so the next seq exceeds floor. It never
	// moves backwards.
	Advance(floor int64)
}

// Clock is a monotonic logical clock for event ordering.
//
// Every history event is stamped with a strictly increasing seq from this
// clock. Wall-clock timestamps are recorded alongside but never used for
// ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

var _ Sequencer = (*Clock)(nil)

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used when reopening a persisted ledger to resume after its last event.
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

// Advance raises the clock to floor if it is behind. Another process
// writing the same ledger file moves the persisted floor under us.
func (c *Clock) Advance(floor int64) {
	for {
		cur := c.seq.Load()
		if cur >= floor || c.seq.CompareAndSwap(cur, floor) {
			return
		}
	}
}
