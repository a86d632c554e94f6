package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

func testScenario(t *testing.T, priority, bucket ir.Tier, pairs ...string) ir.Scenario {
	t.Helper()
	var assign []ir.Assignment
	for i := 0; i+1 < len(pairs); i += 2 {
		assign = append(assign, ir.Assignment{Dimension: pairs[i], Value: pairs[i+1]})
	}
	sc, err := ir.NewScenario(assign)
	require.NoError(t, err)
	sc.Priority = priority
	sc.Bucket = bucket
	return sc
}

// testResult builds a result with three generated scenarios and one
// omission, without running the engine.
func testResult(t *testing.T) *Result {
	t.Helper()
	a := testScenario(t, ir.P0, ir.P0, "os", "linux")
	b := testScenario(t, ir.P1, ir.P1, "os", "mac")
	c := testScenario(t, ir.P2, ir.P2, "os", "bsd")
	d := testScenario(t, ir.P3, "", "os", "plan9")

	r := NewResult()
	r.Generation = &engine.Result{
		Strategy:  engine.StrategyPriorityBucketed,
		Scenarios: []ir.Scenario{a, b, c},
		Omitted:   []engine.Omission{{Scenario: d, Reason: engine.ReasonBelowThreshold}},
	}
	r.Report = &engine.Report{
		Scenarios: []ir.LedgerEntry{
			{Scenario: a, Status: ir.StatusPassed},
			{Scenario: b, Status: ir.StatusFailed},
			{Scenario: c, Status: ir.StatusPending},
		},
		Coverage: ledger.Completion{Counts: ledger.Counts{Total: 3, Covered: 1, Pending: 1, Failed: 1}},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	result := testResult(t)
	assertions := []Assertion{
		{Type: AssertScenarioCount, Count: intPtr(3)},
		{Type: AssertContains, Key: "os_mac"},
		{Type: AssertExcludes, Key: "os_plan9"},
		{Type: AssertOrder, Keys: []string{"os_linux", "os_bsd"}},
		{Type: AssertStatus, Key: "os_mac", Status: "failed"},
		{Type: AssertPriority, Key: "os_bsd", Priority: "P2"},
		{Type: AssertBucket, Key: "os_linux", Bucket: "P0"},
		{Type: AssertOmitted, Key: "os_plan9", Reason: engine.ReasonBelowThreshold},
		{Type: AssertOmitted, Count: intPtr(1)},
		{Type: AssertCoverage, Coverage: &CoverageExpect{Total: 3, Covered: 1, Pending: 1, Failed: 1}},
		{Type: AssertReleaseBlocking, Blocking: boolPtr(false), Blockers: []string{}},
		{Type: AssertEntries, Statuses: []string{"failed", "pending"}, Keys: []string{"os_mac", "os_bsd"}},
		{Type: AssertEntries, Statuses: []string{"pending"}, Priorities: []string{"P0", "P1"}, Count: intPtr(0)},
		{Type: AssertEntries, Priorities: []string{"P0"}, Keys: []string{"os_linux"}, Count: intPtr(1)},
	}

	assert.Empty(t, EvaluateAssertions(result, assertions))
}

func TestEvaluateAssertions_ScenarioIDsResolve(t *testing.T) {
	result := testResult(t)
	id := result.Generation.Scenarios[1].ID

	assert.Empty(t, EvaluateAssertions(result, []Assertion{
		{Type: AssertContains, Key: id},
		{Type: AssertStatus, Key: id, Status: "failed"},
	}))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"count", Assertion{Type: AssertScenarioCount, Count: intPtr(2)}, "Actual: 3 scenarios"},
		{"contains", Assertion{Type: AssertContains, Key: "os_win"}, "not generated"},
		{"excludes", Assertion{Type: AssertExcludes, Key: "os_mac"}, "generated as"},
		{"order missing", Assertion{Type: AssertOrder, Keys: []string{"os_linux", "os_win"}}, "missing scenario: os_win"},
		{"order reversed", Assertion{Type: AssertOrder, Keys: []string{"os_bsd", "os_linux"}}, "os_bsd (pos 3) should be before os_linux (pos 1)"},
		{"status", Assertion{Type: AssertStatus, Key: "os_bsd", Status: "passed"}, "os_bsd is pending"},
		{"status unknown", Assertion{Type: AssertStatus, Key: "os_win", Status: "passed"}, "not in the active run"},
		{"priority", Assertion{Type: AssertPriority, Key: "os_mac", Priority: "P0"}, "os_mac is P1"},
		{"bucket", Assertion{Type: AssertBucket, Key: "os_mac", Bucket: "P2"}, `os_mac in bucket "P1"`},
		{"omitted reason", Assertion{Type: AssertOmitted, Key: "os_plan9", Reason: "quota"}, "omitted as below-priority-threshold"},
		{"not omitted", Assertion{Type: AssertOmitted, Key: "os_linux"}, "not omitted"},
		{"omitted count", Assertion{Type: AssertOmitted, Count: intPtr(0)}, "Actual: 1 omitted"},
		{"coverage", Assertion{Type: AssertCoverage, Coverage: &CoverageExpect{Total: 3, Covered: 3}}, "total=3 covered=1 pending=1 failed=1 skipped=0"},
		{"blocking", Assertion{Type: AssertReleaseBlocking, Blocking: boolPtr(true)}, "release_blocking=false"},
		{"blockers", Assertion{Type: AssertReleaseBlocking, Blocking: boolPtr(false), Blockers: []string{"os_bsd"}}, "blockers [os_bsd]"},
		{"entries keys", Assertion{Type: AssertEntries, Statuses: []string{"passed"}, Keys: []string{"os_mac"}}, "Actual: [os_linux]"},
		{"entries count", Assertion{Type: AssertEntries, Priorities: []string{"P1", "P2"}, Count: intPtr(1)}, "2 entries: [os_mac os_bsd]"},
		{"unknown", Assertion{Type: "trace_contains"}, "unknown assertion type: trace_contains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(testResult(t), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestEvaluateAssertions_NoReport(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertCoverage, Coverage: &CoverageExpect{}},
		{Type: AssertReleaseBlocking, Blocking: boolPtr(false)},
		{Type: AssertScenarioCount, Count: intPtr(0)},
		{Type: AssertEntries, Count: intPtr(0)},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Actual: none")
	assert.Contains(t, errs[1], "Actual: none")
	assert.Contains(t, errs[2], "Actual: none")
}

func TestAssertionError_ListsScenarios(t *testing.T) {
	err := &AssertionError{
		Type:     AssertContains,
		Expected: "scenario os_win",
		Actual:   "not generated",
		Keys:     []string{"os_linux", "os_mac"},
	}
	assert.Equal(t,
		"Assertion failed: contains\n"+
			"  Expected: scenario os_win\n"+
			"  Actual: not generated\n"+
			"\nGenerated scenarios:\n"+
			"  [1] os_linux\n"+
			"  [2] os_mac\n",
		err.Error())
}
