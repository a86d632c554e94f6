package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// marshalJSON converts a record field to JSON TEXT for storage.
// Uses json.Encoder with HTML escaping disabled so stored text matches what
// the CLI prints.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalScenario stores the full scenario so a reopened ledger restores
// priorities, factors and branches without the model.
func marshalScenario(sc ir.Scenario) (string, error) {
	data, err := marshalJSON(sc)
	if err != nil {
		return "", fmt.Errorf("marshal scenario %s: %w", sc.ID, err)
	}
	return data, nil
}

func unmarshalScenario(data string) (ir.Scenario, error) {
	var sc ir.Scenario
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return ir.Scenario{}, fmt.Errorf("unmarshal scenario: %w", err)
	}
	return sc, nil
}

func marshalDifferences(diffs []string) (string, error) {
	if len(diffs) == 0 {
		return "[]", nil
	}
	data, err := marshalJSON(diffs)
	if err != nil {
		return "", fmt.Errorf("marshal differences: %w", err)
	}
	return data, nil
}

func unmarshalDifferences(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var diffs []string
	if err := json.Unmarshal([]byte(data), &diffs); err != nil {
		return nil, fmt.Errorf("unmarshal differences: %w", err)
	}
	return diffs, nil
}

// formatTime stores times as UTC RFC 3339 text. The zero time is stored as
// the empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
