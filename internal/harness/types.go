package harness

import (
	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// TraceEvent is one ledger status change, named by context key.
type TraceEvent struct {
	Seq    int64     `json:"seq"`
	Key    string    `json:"key"`
	From   ir.Status `json:"from"`
	To     ir.Status `json:"to"`
	Reason string    `json:"reason,omitempty"`
	Source string    `json:"source,omitempty"`
}

// Result is the outcome of a run file execution.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Generation is the generator output. Nil when generation failed as
	// expected.
	Generation *engine.Result `json:"generation,omitempty"`

	// Trace contains every ledger event in seq order.
	Trace []TraceEvent `json:"trace"`

	// Report is the final coverage report.
	Report *engine.Report `json:"report,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Trace:  []TraceEvent{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends one ledger event to the trace.
func (r *Result) AddTrace(ev ir.LedgerEvent, key string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    ev.Seq,
		Key:    key,
		From:   ev.From,
		To:     ev.To,
		Reason: ev.Reason,
		Source: ev.Source,
	})
}

// scenarios returns the generated scenarios, or nil.
func (r *Result) scenarios() []ir.Scenario {
	if r.Generation == nil {
		return nil
	}
	return r.Generation.Scenarios
}
