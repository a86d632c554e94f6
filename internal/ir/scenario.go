package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Status is a scenario's execution status in the ledger.
type Status string

const (
	StatusPending Status = "pending"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPassed, StatusFailed, StatusSkipped:
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid status %q: must be one of pending, passed, failed, skipped", s)
	}
}

// Assignment binds one dimension to one value. Wildcard assignments carry
// Value == "*".
type Assignment struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

// IsWildcard reports whether the assignment matches any value.
func (a Assignment) IsWildcard() bool {
	return a.Value == Wildcard
}

// BranchOutcome records which side of a branch a scenario exercises.
type BranchOutcome struct {
	BranchID string `json:"branch_id"`
	Outcome  bool   `json:"outcome"`
	Priority Tier   `json:"priority"`
}

// Scenario is one coverage-eligible combination of dimension values.
// Assignment is in dimension declaration order.
type Scenario struct {
	ID         string          `json:"id"`
	ContextKey string          `json:"context_key"`
	Assignment []Assignment    `json:"assignment"`
	Priority   Tier            `json:"priority"`
	Bucket     Tier            `json:"bucket,omitempty"` // set by priority-bucketed runs
	Factors    FactorScores    `json:"factors,omitempty"`
	Branches   []BranchOutcome `json:"branches,omitempty"`
}

// NewScenario builds a scenario with its derived id and context key.
func NewScenario(assign []Assignment) (Scenario, error) {
	id, err := ScenarioID(assign)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{
		ID:         id,
		ContextKey: ContextKey(assign),
		Assignment: slices.Clone(assign),
	}, nil
}

// Value returns the value assigned to a dimension.
func (s Scenario) Value(dimension string) (string, bool) {
	for _, a := range s.Assignment {
		if a.Dimension == dimension {
			return a.Value, true
		}
	}
	return "", false
}

// Matches reports whether a concrete execution trace (dimension -> value)
// is covered by this scenario. A wildcard on either side matches, and a
// dimension the trace does not mention matches.
func (s Scenario) Matches(trace map[string]string) bool {
	for _, a := range s.Assignment {
		got, ok := trace[a.Dimension]
		if !ok || got == Wildcard || a.IsWildcard() {
			continue
		}
		if got != a.Value {
			return false
		}
	}
	return true
}

// Satisfies reports whether the scenario meets every pair of a selector.
// Wildcard assignments satisfy any requested value.
func (s Scenario) Satisfies(sel Selector) bool {
	for dim, want := range sel {
		got, ok := s.Value(dim)
		if !ok {
			return false
		}
		if got != Wildcard && want != Wildcard && got != want {
			return false
		}
	}
	return true
}

// ContextKey renders {dim1}_{val1}_..._{dimN}_{valN} in assignment order.
func ContextKey(assign []Assignment) string {
	parts := make([]string, 0, len(assign)*2)
	for _, a := range assign {
		parts = append(parts, a.Dimension, a.Value)
	}
	return strings.Join(parts, "_")
}
