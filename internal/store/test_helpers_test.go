package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/testutil"
)

// createTestStore creates a new on-disk store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestScenario builds a scenario from dimension/value pairs.
func createTestScenario(t *testing.T, priority ir.Tier, pairs ...string) ir.Scenario {
	t.Helper()
	var assign []ir.Assignment
	for i := 0; i+1 < len(pairs); i += 2 {
		assign = append(assign, ir.Assignment{Dimension: pairs[i], Value: pairs[i+1]})
	}
	sc, err := ir.NewScenario(assign)
	require.NoError(t, err)
	sc.Priority = priority
	return sc
}

// createTestEntries wraps scenarios as pending entries of one run.
func createTestEntries(runID string, scs ...ir.Scenario) []ir.LedgerEntry {
	out := make([]ir.LedgerEntry, len(scs))
	for i, sc := range scs {
		out[i] = ir.LedgerEntry{Scenario: sc, RunID: runID, Position: i, Status: ir.StatusPending}
	}
	return out
}

func createTestRun(id string, scenarios int) ir.Run {
	return ir.Run{
		ID:        id,
		ModelName: "checkout",
		ModelHash: "model-hash",
		Strategy:  "exhaustive",
		Scenarios: scenarios,
		CreatedAt: testutil.Epoch,
	}
}
