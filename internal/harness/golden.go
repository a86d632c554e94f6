package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// RunSnapshot captures what a run produced, in a form stable across
// executions: context keys rather than scenario ids, no timestamps.
type RunSnapshot struct {
	Name   string
	RunID  string
	Result *Result
}

// toCanonicalMap converts a RunSnapshot to a map[string]any for canonical
// JSON serialization. ir.MarshalCanonical only handles IR types and
// primitives.
func (s *RunSnapshot) toCanonicalMap() map[string]any {
	out := map[string]any{
		"name":  s.Name,
		"trace": traceList(s.Result.Trace),
	}
	if s.RunID != "" {
		out["run_id"] = s.RunID
	}

	if gen := s.Result.Generation; gen != nil {
		out["strategy"] = string(gen.Strategy)

		scenarios := make([]any, len(gen.Scenarios))
		for i, sc := range gen.Scenarios {
			m := map[string]any{
				"key":      sc.ContextKey,
				"priority": string(sc.Priority),
			}
			if sc.Bucket != "" {
				m["bucket"] = string(sc.Bucket)
			}
			scenarios[i] = m
		}
		out["scenarios"] = scenarios

		if len(gen.Omitted) > 0 {
			omitted := make([]any, len(gen.Omitted))
			for i, o := range gen.Omitted {
				omitted[i] = map[string]any{
					"key":    o.Scenario.ContextKey,
					"reason": o.Reason,
				}
			}
			out["omitted"] = omitted
		}
	}

	if r := s.Result.Report; r != nil {
		statuses := make([]any, len(r.Scenarios))
		for i, e := range r.Scenarios {
			statuses[i] = map[string]any{
				"key":    e.Scenario.ContextKey,
				"status": string(e.Status),
			}
		}
		out["ledger"] = statuses
		out["coverage"] = map[string]any{
			"total":   r.Coverage.Total,
			"covered": r.Coverage.Covered,
			"pending": r.Coverage.Pending,
			"failed":  r.Coverage.Failed,
			"skipped": r.Coverage.Skipped,
		}
		out["release_blocking"] = r.ReleaseBlocking

		blockers := make([]any, len(r.Blockers))
		for i, b := range r.Blockers {
			blockers[i] = b.String()
		}
		out["blockers"] = blockers
	}
	return out
}

func traceList(trace []TraceEvent) []any {
	out := make([]any, len(trace))
	for i, ev := range trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"key":  ev.Key,
			"from": string(ev.From),
			"to":   string(ev.To),
		}
		if ev.Reason != "" {
			m["reason"] = ev.Reason
		}
		if ev.Source != "" {
			m["source"] = ev.Source
		}
		out[i] = m
	}
	return out
}

// Snapshot returns the canonical JSON snapshot of a result.
func Snapshot(name, runID string, result *Result) ([]byte, error) {
	s := RunSnapshot{Name: name, RunID: runID, Result: result}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a run file and compares its snapshot against a
// golden file stored in testdata/golden/{rf.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the run cannot execute. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, rf *RunFile) (*Result, error) {
	t.Helper()

	result, err := Run(rf)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, rf.Name, rf.RunID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already executed result against a golden file.
func AssertGolden(t *testing.T, name, runID string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, runID, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
