package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed start of every TimeSource created with NewTimeSource.
var Epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeSource is a deterministic wall clock for tests. Each call to Now
// returns a time one second after the previous one.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type TimeSource struct {
	mu   sync.Mutex
	next time.Time
}

// NewTimeSource creates a time source whose first Now() returns Epoch.
func NewTimeSource() *TimeSource {
	return &TimeSource{next: Epoch}
}

// Now returns the current time and advances the source by one second.
func (s *TimeSource) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next = s.next.Add(time.Second)
	return t
}
