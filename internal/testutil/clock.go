package testutil

import (
	"slices"
	"sync"
)

// DeterministicClock is a ledger seq source for tests. It satisfies
// ledger.Sequencer and remembers every seq it issued, so a test can check
// that each status change drew exactly one seq and repeats drew none.
type DeterministicClock struct {
	mu     sync.Mutex
	seq    int64
	issued []int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// NewDeterministicClockAt creates a clock that resumes after start, as a
// reopened ledger resumes after its last persisted event.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{seq: start}
}

// Next issues the next seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

// Advance raises the clock to floor without issuing a seq.
func (c *DeterministicClock) Advance(floor int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = max(c.seq, floor)
}

// Current returns the last seq issued, or the start value.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns the seqs handed out so far, in issue order.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.issued)
}
