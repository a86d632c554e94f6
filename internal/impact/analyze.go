package impact

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Verification actions per category.
var verification = map[ir.ImpactCategory]string{
	ir.ImpactNone:       "none: behavior unchanged",
	ir.ImpactRefactored: "run the existing regression suite; results must be identical",
	ir.ImpactChanged:    "update expected values in affected tests and confirm with the feature owner",
	ir.ImpactNew:        "add scenarios for the new behavior",
	ir.ImpactBreaking:   "record a migration note and notify consumers before release",
}

// Verification returns the verification action for a category.
func Verification(c ir.ImpactCategory) string {
	return verification[c]
}

// Feature is one entry of a snapshot file.
type Feature struct {
	ID            string `yaml:"id" validate:"required"`
	Before        any    `yaml:"before"`
	After         any    `yaml:"after"`
	Refactored    bool   `yaml:"refactored"`
	MigrationNote string `yaml:"migration_note"`
}

type snapshotFile struct {
	Features []Feature `yaml:"features" validate:"dive"`
}

var (
	featureValidate     *validator.Validate
	featureValidateOnce sync.Once
)

// Parse decodes a snapshot document (YAML or JSON):
//
//	features:
//	  - id: search
//	    before: {results: 10}
//	    after:  {results: 20}
//	    refactored: false
//	    migration_note: ""
//
// A missing or null before/after means the behavior is absent on that side.
func Parse(data []byte) ([]Feature, error) {
	var doc snapshotFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ir.NewConfigurationError("parse snapshots: %v", err)
	}

	featureValidateOnce.Do(func() {
		featureValidate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := featureValidate.Struct(&doc); err != nil {
		return nil, ir.NewConfigurationError("invalid snapshots: %v", err)
	}

	seen := make(map[string]bool, len(doc.Features))
	for _, f := range doc.Features {
		if seen[f.ID] {
			return nil, ir.NewConfigurationError("duplicate feature %q", f.ID)
		}
		seen[f.ID] = true
	}
	return doc.Features, nil
}

// LoadFile reads and parses a snapshot file.
func LoadFile(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ir.NewConfigurationError("read snapshots: %v", err)
	}
	return Parse(data)
}

// Analyze classifies every feature and builds its impact record, in input
// order.
func Analyze(features []Feature) ([]ir.ImpactRecord, error) {
	out := make([]ir.ImpactRecord, 0, len(features))
	for _, f := range features {
		rec, err := Record(f)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Record classifies one feature.
func Record(f Feature) (ir.ImpactRecord, error) {
	before, err := snapshot(f.Before)
	if err != nil {
		return ir.ImpactRecord{}, ir.NewConfigurationError("feature %s: before: %v", f.ID, err)
	}
	after, err := snapshot(f.After)
	if err != nil {
		return ir.ImpactRecord{}, ir.NewConfigurationError("feature %s: after: %v", f.ID, err)
	}

	category, diffs := Classify(before, after, f.Refactored)
	rec := ir.ImpactRecord{
		FeatureID:     f.ID,
		Before:        before,
		After:         after,
		Category:      category,
		Verification:  Verification(category),
		MigrationNote: strings.TrimSpace(f.MigrationNote),
		Differences:   diffs,
	}
	if rec.BeforeJSON, err = canonical(before); err != nil {
		return ir.ImpactRecord{}, err
	}
	if rec.AfterJSON, err = canonical(after); err != nil {
		return ir.ImpactRecord{}, err
	}
	return rec, nil
}

// snapshot converts decoded YAML into an IR value; nil stays nil (absent).
func snapshot(v any) (ir.IRValue, error) {
	if v == nil {
		return nil, nil
	}
	return ir.FromAny(normalize(v))
}

// normalize turns yaml.v3's map[string]any / map[any]any nodes into the
// map[string]any form FromAny expects.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func canonical(v ir.IRValue) (string, error) {
	if v == nil {
		return "", nil
	}
	out, err := ir.MarshalSnapshot(v)
	if err != nil {
		return "", fmt.Errorf("render snapshot: %w", err)
	}
	return out, nil
}
