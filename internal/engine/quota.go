package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultMaxScenarios is the default limit on tuples a single generation
// may produce.
const DefaultMaxScenarios = 100_000

// QuotaEnforcer counts the tuples one generation has produced and enforces
// a maximum. The exhaustive workers share one enforcer.
//
// This stops a model whose cross product explodes before it exhausts
// memory, rather than after. A limit of zero or less disables the check.
//
// Thread-safety: Check may be called from any goroutine.
type QuotaEnforcer struct {
	limit   int64
	current atomic.Int64
}

// NewQuotaEnforcer creates an enforcer with the given limit.
func NewQuotaEnforcer(limit int) *QuotaEnforcer {
	return &QuotaEnforcer{limit: int64(limit)}
}

// Check counts one tuple and validates against the limit.
//
// Returns QuotaExceededError once the count passes the limit.
func (q *QuotaEnforcer) Check() error {
	if q == nil || q.limit <= 0 {
		return nil
	}
	if n := q.current.Add(1); n > q.limit {
		return &QuotaExceededError{Produced: int(n), Limit: int(q.limit)}
	}
	return nil
}

// Current returns the number of tuples counted so far.
func (q *QuotaEnforcer) Current() int {
	return int(q.current.Load())
}

// Limit returns the configured limit.
func (q *QuotaEnforcer) Limit() int {
	return int(q.limit)
}

// QuotaExceededError is returned when a generation passes its scenario
// limit. Generate wraps it in a configuration error: the fix is a smaller
// model, more guards, or a cheaper strategy.
type QuotaExceededError struct {
	Strategy Strategy
	Produced int
	Limit    int
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("scenario quota exceeded: %d > %d limit", e.Produced, e.Limit)
	}
	return fmt.Sprintf("%s generation exceeded scenario quota: %d > %d limit", e.Strategy, e.Produced, e.Limit)
}

// IsQuotaError returns true if the error chain holds a QuotaExceededError.
func IsQuotaError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
