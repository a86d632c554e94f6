package ledger

import (
	"context"
	"fmt"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Replay and verification
//
// History is the source of truth; entries are a projection of it. Replay
// folds every event in seq order, starting each scenario at pending, and
// compares the result with the stored entries:
//
//	pending --e1--> passed --e2--> failed     replayed status: failed
//
// Each event's From must equal the status the fold has reached, and seq
// must strictly increase. Any disagreement is reported, never repaired.

// Mismatch is one disagreement found by Replay.
type Mismatch struct {
	ScenarioID string    `json:"scenario_id"`
	Stored     ir.Status `json:"stored"`
	Replayed   ir.Status `json:"replayed"`
	Detail     string    `json:"detail"`
}

// ReplayReport is the outcome of Replay.
type ReplayReport struct {
	Events     int        `json:"events"`
	Scenarios  int        `json:"scenarios"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Consistent reports whether replay found no mismatches.
func (r *ReplayReport) Consistent() bool {
	return len(r.Mismatches) == 0
}

type foldState struct {
	status ir.Status
	reason string
	seq    int64
}

// Replay rebuilds every scenario's status from history and checks it
// against the stored entries, across all runs.
func (l *Ledger) Replay(ctx context.Context) (*ReplayReport, error) {
	events, err := l.store.LoadEvents(ctx, "")
	if err != nil {
		return nil, l.storeError("load_events", err)
	}
	entries, err := l.store.LoadEntries(ctx)
	if err != nil {
		return nil, l.storeError("load_entries", err)
	}

	report := &ReplayReport{Events: len(events), Scenarios: len(entries)}
	folded := make(map[string]*foldState)

	var lastSeq int64
	for _, ev := range events {
		if ev.Seq <= lastSeq {
			report.Mismatches = append(report.Mismatches, Mismatch{
				ScenarioID: ev.ScenarioID,
				Detail:     fmt.Sprintf("seq %d does not follow %d", ev.Seq, lastSeq),
			})
		}
		lastSeq = ev.Seq

		st, ok := folded[ev.ScenarioID]
		if !ok {
			st = &foldState{status: ir.StatusPending}
			folded[ev.ScenarioID] = st
		}
		if ev.From != st.status {
			report.Mismatches = append(report.Mismatches, Mismatch{
				ScenarioID: ev.ScenarioID,
				Replayed:   st.status,
				Detail:     fmt.Sprintf("event %d starts from %s but history reached %s", ev.Seq, ev.From, st.status),
			})
		}
		st.status, st.reason, st.seq = ev.To, ev.Reason, ev.Seq
	}

	for _, e := range entries {
		st, ok := folded[e.Scenario.ID]
		if !ok {
			st = &foldState{status: ir.StatusPending}
		}
		delete(folded, e.Scenario.ID)

		switch {
		case st.status != e.Status:
			report.Mismatches = append(report.Mismatches, Mismatch{
				ScenarioID: e.Scenario.ID,
				Stored:     e.Status,
				Replayed:   st.status,
				Detail:     "status differs from history",
			})
		case st.reason != e.Reason:
			report.Mismatches = append(report.Mismatches, Mismatch{
				ScenarioID: e.Scenario.ID,
				Stored:     e.Status,
				Replayed:   st.status,
				Detail:     fmt.Sprintf("reason %q differs from history %q", e.Reason, st.reason),
			})
		case st.seq != e.LastSeq:
			report.Mismatches = append(report.Mismatches, Mismatch{
				ScenarioID: e.Scenario.ID,
				Stored:     e.Status,
				Replayed:   st.status,
				Detail:     fmt.Sprintf("last seq %d differs from history %d", e.LastSeq, st.seq),
			})
		}
	}

	for _, ev := range events {
		if st, ok := folded[ev.ScenarioID]; ok {
			report.Mismatches = append(report.Mismatches, Mismatch{
				ScenarioID: ev.ScenarioID,
				Replayed:   st.status,
				Detail:     "history for a scenario with no entry",
			})
			delete(folded, ev.ScenarioID)
		}
	}

	l.logger.Debug("ledger replayed",
		"events", report.Events,
		"scenarios", report.Scenarios,
		"mismatches", len(report.Mismatches))
	return report, nil
}
