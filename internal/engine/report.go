package engine

import (
	"context"
	"fmt"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

// Blocker kinds.
const (
	BlockerPendingP0        = "pending-p0"
	BlockerUnresolvedImpact = "unresolved-breaking-impact"
)

// Blocker names one item that blocks release.
type Blocker struct {
	Kind string `json:"kind"`
	Name string `json:"name"` // context key or feature id
	ID   string `json:"id,omitempty"`
}

func (b Blocker) String() string {
	return fmt.Sprintf("%s: %s", b.Kind, b.Name)
}

// Report is the coverage report of the active run.
type Report struct {
	RunID           string            `json:"run_id"`
	Scenarios       []ir.LedgerEntry  `json:"scenarios"`
	Coverage        ledger.Completion `json:"coverage"`
	Omitted         []Omission        `json:"omitted,omitempty"`
	Impacts         []ir.ImpactRecord `json:"impacts,omitempty"`
	ReleaseBlocking bool              `json:"release_blocking"`
	Blockers        []Blocker         `json:"blockers,omitempty"`
}

// Report builds the coverage report of the active run.
//
// The report is release-blocking when any P0 scenario is still pending or
// any breaking impact has no migration note. Every such item is listed in
// Blockers: pending P0 scenarios in run order, then impacts by feature id.
func (e *Engine) Report(ctx context.Context) (*Report, error) {
	impacts, err := e.ledger.Impacts(ctx)
	if err != nil {
		return nil, err
	}
	return BuildReport(e.ledger, impacts, e.omitted()), nil
}

// BuildReport assembles a report from a ledger's active run and a set of
// impact records.
func BuildReport(l *ledger.Ledger, impacts []ir.ImpactRecord, omitted []Omission) *Report {
	r := &Report{
		RunID:     l.ActiveRun(),
		Scenarios: l.Entries(),
		Coverage:  l.Completion(),
		Omitted:   omitted,
		Impacts:   impacts,
	}

	for _, entry := range r.Scenarios {
		if entry.Scenario.Priority == ir.P0 && entry.Status == ir.StatusPending {
			r.Blockers = append(r.Blockers, Blocker{
				Kind: BlockerPendingP0,
				Name: entry.Scenario.ContextKey,
				ID:   entry.Scenario.ID,
			})
		}
	}
	for _, rec := range impacts {
		if rec.Unresolved() {
			r.Blockers = append(r.Blockers, Blocker{
				Kind: BlockerUnresolvedImpact,
				Name: rec.FeatureID,
			})
		}
	}
	r.ReleaseBlocking = len(r.Blockers) > 0
	return r
}
