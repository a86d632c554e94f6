package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// RunFile defines one conformance run: a model, a strategy, the results a
// runner reports, and what the ledger must look like afterwards.
type RunFile struct {
	// Name uniquely identifies the run; golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what the run validates.
	Description string `yaml:"description"`

	// Model is the model document path, relative to the run file.
	Model string `yaml:"model"`

	// Strategy is one of exhaustive, pairwise, priority-bucketed.
	Strategy string `yaml:"strategy"`

	// RunID is a fixed run id for deterministic snapshots.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// MaxScenarios overrides the generator quota when positive.
	MaxScenarios int `yaml:"max_scenarios,omitempty"`

	// ExpectError is the error code Generate must fail with. When set,
	// steps and impacts are not executed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Steps are the observations reported after generation, in order.
	Steps []Step `yaml:"steps,omitempty"`

	// Impacts is an optional snapshot file, relative to the run file,
	// classified and recorded before the report is built.
	Impacts string `yaml:"impacts,omitempty"`

	// Assertions validate the generated scenarios and the final report.
	Assertions []Assertion `yaml:"assertions"`
}

// Step reports one observation. Exactly one of Record and Trace is set.
type Step struct {
	// Record is a scenario id or context key.
	Record string `yaml:"record,omitempty"`

	// Trace is a concrete execution trace (dimension -> value); every
	// matching scenario is recorded.
	Trace map[string]string `yaml:"trace,omitempty"`

	Status string `yaml:"status"`
	Reason string `yaml:"reason,omitempty"`
	Source string `yaml:"source,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates generated scenarios or the final report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "scenario_count": exactly Count scenarios were generated
	// - "contains": a scenario with context key Key was generated
	// - "excludes": no scenario with context key Key was generated
	// - "order": the context keys in Keys appear in this relative order
	// - "status": the scenario Key has status Status
	// - "priority": the scenario Key has priority Priority
	// - "bucket": the scenario Key landed in bucket Bucket
	// - "omitted": Key was omitted (optionally with Reason), or, with only
	//   Count set, exactly Count combinations were omitted
	// - "coverage": the completion counts equal Coverage
	// - "release_blocking": the report's verdict equals Blocking, and its
	//   blockers equal Blockers when given
	// - "entries": the entries with one of Statuses and one of Priorities
	//   are exactly Keys, or number Count
	Type string `yaml:"type"`

	Key      string   `yaml:"key,omitempty"`
	Keys     []string `yaml:"keys,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
	Status   string   `yaml:"status,omitempty"`
	Priority string   `yaml:"priority,omitempty"`
	Bucket   string   `yaml:"bucket,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`

	Coverage *CoverageExpect `yaml:"coverage,omitempty"`

	Blocking *bool    `yaml:"blocking,omitempty"`
	Blockers []string `yaml:"blockers,omitempty"`

	Statuses   []string `yaml:"statuses,omitempty"`
	Priorities []string `yaml:"priorities,omitempty"`
}

// CoverageExpect is the expected completion of the active run.
type CoverageExpect struct {
	Total   int `yaml:"total"`
	Covered int `yaml:"covered"`
	Pending int `yaml:"pending"`
	Failed  int `yaml:"failed"`
	Skipped int `yaml:"skipped"`
}

// Assertion type constants.
const (
	AssertScenarioCount   = "scenario_count"
	AssertContains        = "contains"
	AssertExcludes        = "excludes"
	AssertOrder           = "order"
	AssertStatus          = "status"
	AssertPriority        = "priority"
	AssertBucket          = "bucket"
	AssertOmitted         = "omitted"
	AssertCoverage        = "coverage"
	AssertReleaseBlocking = "release_blocking"
	AssertEntries         = "entries"
)

// LoadRunFile reads and parses a run file. Relative model and impact paths
// are resolved against the run file's directory. Unknown fields (typos)
// and missing required fields are rejected.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	rf, err := ParseRunFile(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if rf.Model != "" && !filepath.IsAbs(rf.Model) {
		rf.Model = filepath.Join(base, rf.Model)
	}
	if rf.Impacts != "" && !filepath.IsAbs(rf.Impacts) {
		rf.Impacts = filepath.Join(base, rf.Impacts)
	}

	if err := checkPaths(rf); err != nil {
		return nil, fmt.Errorf("invalid run file: %w", err)
	}
	return rf, nil
}

// ParseRunFile decodes and validates a run file without touching the
// filesystem.
func ParseRunFile(data []byte) (*RunFile, error) {
	var rf RunFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateRunFile(&rf); err != nil {
		return nil, fmt.Errorf("invalid run file: %w", err)
	}
	return &rf, nil
}

func validateRunFile(rf *RunFile) error {
	if rf.Name == "" {
		return fmt.Errorf("name is required")
	}
	if rf.Description == "" {
		return fmt.Errorf("description is required")
	}
	if rf.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := engine.ParseStrategy(rf.Strategy); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if rf.ExpectError != "" {
		if err := validateCode(rf.ExpectError); err != nil {
			return fmt.Errorf("expect_error: %w", err)
		}
	} else if len(rf.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range rf.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range rf.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch {
	case s.Record == "" && len(s.Trace) == 0:
		return fmt.Errorf("steps[%d]: one of record or trace is required", index)
	case s.Record != "" && len(s.Trace) > 0:
		return fmt.Errorf("steps[%d]: record and trace are mutually exclusive", index)
	}
	if _, err := ir.ParseStatus(s.Status); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	if s.ExpectError != "" {
		if err := validateCode(s.ExpectError); err != nil {
			return fmt.Errorf("steps[%d].expect_error: %w", index, err)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertScenarioCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for scenario_count", index)
		}
	case AssertContains, AssertExcludes:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for %s", index, a.Type)
		}
	case AssertOrder:
		if len(a.Keys) < 2 {
			return fmt.Errorf("assertions[%d]: at least two keys are required for order", index)
		}
	case AssertStatus:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for status", index)
		}
		if _, err := ir.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertPriority, AssertBucket:
		tier := a.Priority
		if a.Type == AssertBucket {
			tier = a.Bucket
		}
		if a.Key == "" || tier == "" {
			return fmt.Errorf("assertions[%d]: key and %s are required for %s", index, a.Type, a.Type)
		}
		if _, err := ir.ParseTier(tier); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertOmitted:
		if a.Key == "" && a.Count == nil {
			return fmt.Errorf("assertions[%d]: key or count is required for omitted", index)
		}
	case AssertCoverage:
		if a.Coverage == nil {
			return fmt.Errorf("assertions[%d]: coverage is required for coverage", index)
		}
	case AssertReleaseBlocking:
		if a.Blocking == nil {
			return fmt.Errorf("assertions[%d]: blocking is required for release_blocking", index)
		}
	case AssertEntries:
		if a.Keys == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: keys or count is required for entries", index)
		}
		if _, err := a.entryFilter(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateCode(code string) error {
	switch ir.ErrorCode(code) {
	case ir.ErrCodeConfiguration, ir.ErrCodeEmptyDimension, ir.ErrCodeUnknownScenario, ir.ErrCodeStoreUnavailable:
		return nil
	default:
		return fmt.Errorf("unknown error code %q", code)
	}
}

func checkPaths(rf *RunFile) error {
	if _, err := os.Stat(rf.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", rf.Model)
	}
	if rf.Impacts != "" {
		if _, err := os.Stat(rf.Impacts); os.IsNotExist(err) {
			return fmt.Errorf("impact file not found: %s", rf.Impacts)
		}
	}
	return nil
}
