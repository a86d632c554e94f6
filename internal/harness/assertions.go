package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/queryir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Keys     []string // Generated context keys in run order
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Keys) > 0 {
		fmt.Fprintf(&buf, "\nGenerated scenarios:\n")
		for i, key := range e.Keys {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, key)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns one message per
// failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertScenarioCount:
		return assertScenarioCount(result, a)
	case AssertContains:
		return assertContains(result, a)
	case AssertExcludes:
		return assertExcludes(result, a)
	case AssertOrder:
		return assertOrder(result, a)
	case AssertStatus:
		return assertStatus(result, a)
	case AssertPriority:
		return assertPriority(result, a)
	case AssertBucket:
		return assertBucket(result, a)
	case AssertOmitted:
		return assertOmitted(result, a)
	case AssertCoverage:
		return assertCoverage(result, a)
	case AssertReleaseBlocking:
		return assertReleaseBlocking(result, a)
	case AssertEntries:
		return assertEntries(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func contextKeys(result *Result) []string {
	scenarios := result.scenarios()
	keys := make([]string, len(scenarios))
	for i, sc := range scenarios {
		keys[i] = sc.ContextKey
	}
	return keys
}

func findScenario(result *Result, key string) (ir.Scenario, bool) {
	for _, sc := range result.scenarios() {
		if sc.ContextKey == key || sc.ID == key {
			return sc, true
		}
	}
	return ir.Scenario{}, false
}

func findEntry(result *Result, key string) (ir.LedgerEntry, bool) {
	if result.Report == nil {
		return ir.LedgerEntry{}, false
	}
	for _, e := range result.Report.Scenarios {
		if e.Scenario.ContextKey == key || e.Scenario.ID == key {
			return e, true
		}
	}
	return ir.LedgerEntry{}, false
}

func omissions(result *Result) []engine.Omission {
	if result.Generation == nil {
		return nil
	}
	return result.Generation.Omitted
}

// assertScenarioCount checks the number of generated scenarios.
func assertScenarioCount(result *Result, a Assertion) error {
	got := len(result.scenarios())
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertScenarioCount,
			Expected: fmt.Sprintf("%d scenarios", *a.Count),
			Actual:   fmt.Sprintf("%d scenarios", got),
			Keys:     contextKeys(result),
		}
	}
	return nil
}

// assertContains checks that a scenario was generated.
func assertContains(result *Result, a Assertion) error {
	if _, ok := findScenario(result, a.Key); !ok {
		return &AssertionError{
			Type:     AssertContains,
			Expected: fmt.Sprintf("scenario %s", a.Key),
			Actual:   "not generated",
			Keys:     contextKeys(result),
		}
	}
	return nil
}

// assertExcludes checks that a scenario was not generated.
func assertExcludes(result *Result, a Assertion) error {
	if sc, ok := findScenario(result, a.Key); ok {
		return &AssertionError{
			Type:     AssertExcludes,
			Expected: fmt.Sprintf("no scenario %s", a.Key),
			Actual:   fmt.Sprintf("generated as %s", sc.ID),
			Keys:     contextKeys(result),
		}
	}
	return nil
}

// assertOrder checks that keys appear in the given relative order.
// Keys don't need to be consecutive.
func assertOrder(result *Result, a Assertion) error {
	keys := contextKeys(result)

	positions := make([]int, len(a.Keys))
	for i, key := range a.Keys {
		positions[i] = slices.Index(keys, key)
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("all scenarios present: %v", a.Keys),
				Actual:   fmt.Sprintf("missing scenario: %s", key),
				Keys:     keys,
			}
		}
	}

	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("scenarios in order: %v", a.Keys),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					a.Keys[i-1], positions[i-1]+1, a.Keys[i], positions[i]+1),
				Keys: keys,
			}
		}
	}
	return nil
}

// assertStatus checks a scenario's final ledger status.
func assertStatus(result *Result, a Assertion) error {
	entry, ok := findEntry(result, a.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("scenario %s with status %s", a.Key, a.Status),
			Actual:   "not in the active run",
			Keys:     contextKeys(result),
		}
	}
	if entry.Status != ir.Status(a.Status) {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("%s is %s", a.Key, a.Status),
			Actual:   fmt.Sprintf("%s is %s", a.Key, entry.Status),
		}
	}
	return nil
}

// assertPriority checks a generated scenario's priority.
func assertPriority(result *Result, a Assertion) error {
	sc, ok := findScenario(result, a.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertPriority,
			Expected: fmt.Sprintf("scenario %s with priority %s", a.Key, a.Priority),
			Actual:   "not generated",
			Keys:     contextKeys(result),
		}
	}
	if sc.Priority != ir.Tier(a.Priority) {
		return &AssertionError{
			Type:     AssertPriority,
			Expected: fmt.Sprintf("%s is %s", a.Key, a.Priority),
			Actual:   fmt.Sprintf("%s is %s", a.Key, sc.Priority),
		}
	}
	return nil
}

// assertBucket checks the bucket a priority-bucketed run put a scenario in.
func assertBucket(result *Result, a Assertion) error {
	sc, ok := findScenario(result, a.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertBucket,
			Expected: fmt.Sprintf("scenario %s in bucket %s", a.Key, a.Bucket),
			Actual:   "not generated",
			Keys:     contextKeys(result),
		}
	}
	if sc.Bucket != ir.Tier(a.Bucket) {
		return &AssertionError{
			Type:     AssertBucket,
			Expected: fmt.Sprintf("%s in bucket %s", a.Key, a.Bucket),
			Actual:   fmt.Sprintf("%s in bucket %q", a.Key, sc.Bucket),
		}
	}
	return nil
}

// assertOmitted checks omitted combinations by key or by count.
func assertOmitted(result *Result, a Assertion) error {
	omitted := omissions(result)

	if a.Key == "" {
		if len(omitted) != *a.Count {
			return &AssertionError{
				Type:     AssertOmitted,
				Expected: fmt.Sprintf("%d omitted", *a.Count),
				Actual:   fmt.Sprintf("%d omitted", len(omitted)),
			}
		}
		return nil
	}

	for _, o := range omitted {
		if o.Scenario.ContextKey != a.Key && o.Scenario.ID != a.Key {
			continue
		}
		if a.Reason != "" && o.Reason != a.Reason {
			return &AssertionError{
				Type:     AssertOmitted,
				Expected: fmt.Sprintf("%s omitted as %s", a.Key, a.Reason),
				Actual:   fmt.Sprintf("%s omitted as %s", a.Key, o.Reason),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertOmitted,
		Expected: fmt.Sprintf("%s omitted", a.Key),
		Actual:   "not omitted",
		Keys:     contextKeys(result),
	}
}

// assertCoverage checks the completion counts of the active run.
func assertCoverage(result *Result, a Assertion) error {
	if result.Report == nil {
		return &AssertionError{Type: AssertCoverage, Expected: "a report", Actual: "none"}
	}
	c := result.Report.Coverage
	got := CoverageExpect{
		Total:   c.Total,
		Covered: c.Covered,
		Pending: c.Pending,
		Failed:  c.Failed,
		Skipped: c.Skipped,
	}
	if got != *a.Coverage {
		return &AssertionError{
			Type:     AssertCoverage,
			Expected: formatCoverage(*a.Coverage),
			Actual:   formatCoverage(got),
		}
	}
	return nil
}

func formatCoverage(c CoverageExpect) string {
	return fmt.Sprintf("total=%d covered=%d pending=%d failed=%d skipped=%d",
		c.Total, c.Covered, c.Pending, c.Failed, c.Skipped)
}

// assertReleaseBlocking checks the report's release verdict and, when
// given, the exact blocker list.
func assertReleaseBlocking(result *Result, a Assertion) error {
	if result.Report == nil {
		return &AssertionError{Type: AssertReleaseBlocking, Expected: "a report", Actual: "none"}
	}
	r := result.Report
	if r.ReleaseBlocking != *a.Blocking {
		return &AssertionError{
			Type:     AssertReleaseBlocking,
			Expected: fmt.Sprintf("release_blocking=%t", *a.Blocking),
			Actual:   fmt.Sprintf("release_blocking=%t blockers=%v", r.ReleaseBlocking, blockerNames(r)),
		}
	}
	if a.Blockers != nil && !slices.Equal(a.Blockers, blockerNames(r)) {
		return &AssertionError{
			Type:     AssertReleaseBlocking,
			Expected: fmt.Sprintf("blockers %v", a.Blockers),
			Actual:   fmt.Sprintf("blockers %v", blockerNames(r)),
		}
	}
	return nil
}

func blockerNames(r *engine.Report) []string {
	names := make([]string, len(r.Blockers))
	for i, b := range r.Blockers {
		names[i] = b.Name
	}
	return names
}

// entryFilter converts the assertion's statuses and priorities.
func (a Assertion) entryFilter() (queryir.EntryFilter, error) {
	var f queryir.EntryFilter
	for _, s := range a.Statuses {
		status, err := ir.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, p := range a.Priorities {
		if p == "" {
			return f, fmt.Errorf("empty priority")
		}
		tier, err := ir.ParseTier(p)
		if err != nil {
			return f, err
		}
		f.Priorities = append(f.Priorities, tier)
	}
	return f, nil
}

// assertEntries checks the report entries selected by a status and
// priority filter.
func assertEntries(result *Result, a Assertion) error {
	if result.Report == nil {
		return &AssertionError{Type: AssertEntries, Expected: "a report", Actual: "none"}
	}
	f, err := a.entryFilter()
	if err != nil {
		return err
	}
	matched := f.Filter(result.Report.Scenarios)
	keys := make([]string, len(matched))
	for i, e := range matched {
		keys[i] = e.Scenario.ContextKey
	}

	if a.Keys != nil && !slices.Equal(a.Keys, keys) {
		return &AssertionError{
			Type:     AssertEntries,
			Expected: fmt.Sprintf("entries where %s: %v", f, a.Keys),
			Actual:   fmt.Sprintf("%v", keys),
		}
	}
	if a.Count != nil && *a.Count != len(keys) {
		return &AssertionError{
			Type:     AssertEntries,
			Expected: fmt.Sprintf("%d entries where %s", *a.Count, f),
			Actual:   fmt.Sprintf("%d entries: %v", len(keys), keys),
		}
	}
	return nil
}
