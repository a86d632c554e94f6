package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func entry(key string, prio ir.Tier, status ir.Status, run string) ir.LedgerEntry {
	return ir.LedgerEntry{
		Scenario: ir.Scenario{ID: "id-" + key, ContextKey: key, Priority: prio},
		RunID:    run,
		Status:   status,
	}
}

func keys(entries []ir.LedgerEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Scenario.ContextKey)
	}
	return out
}

func TestEntryFilter_Filter(t *testing.T) {
	entries := []ir.LedgerEntry{
		entry("a", ir.P0, ir.StatusPending, "run-2"),
		entry("b", ir.P1, ir.StatusFailed, "run-2"),
		entry("c", ir.P0, ir.StatusFailed, "run-2"),
		entry("d", ir.P0, ir.StatusFailed, "run-1"),
	}

	tests := []struct {
		name   string
		filter EntryFilter
		want   []string
	}{
		{"zero filter keeps everything", EntryFilter{}, []string{"a", "b", "c", "d"}},
		{"status", EntryFilter{Statuses: []ir.Status{ir.StatusFailed}}, []string{"b", "c", "d"}},
		{"status and priority", EntryFilter{Statuses: []ir.Status{ir.StatusFailed}, Priorities: []ir.Tier{ir.P0}}, []string{"c", "d"}},
		{"run", EntryFilter{RunID: "run-2", Priorities: []ir.Tier{ir.P0}}, []string{"a", "c"}},
		{"any of several statuses", EntryFilter{Statuses: []ir.Status{ir.StatusPending, ir.StatusFailed}, RunID: "run-1"}, []string{"d"}},
		{"no match", EntryFilter{Statuses: []ir.Status{ir.StatusPassed}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keys(tt.filter.Filter(entries)))
		})
	}
}

func TestMatch_UnknownFieldNeverMatches(t *testing.T) {
	e := entry("a", ir.P0, ir.StatusPending, "run-1")
	assert.False(t, Match(Equals{Field: "owner", Value: ir.IRString("x")}, e))
	assert.True(t, Match(nil, e))
	assert.True(t, Match(And{}, e))
	assert.False(t, Match(In{Field: "status"}, e), "empty set matches nothing")
}

func TestMatch_IntColumns(t *testing.T) {
	e := entry("a", ir.P0, ir.StatusPending, "run-1")
	e.Position = 3
	assert.True(t, Match(&Equals{Field: "position", Value: ir.IRInt(3)}, e))
	assert.False(t, Match(&Equals{Field: "position", Value: ir.IRString("3")}, e))
}

func TestEntryFilter_String(t *testing.T) {
	f := EntryFilter{RunID: "r", Statuses: []ir.Status{ir.StatusFailed}, Priorities: []ir.Tier{ir.P0}}
	assert.Equal(t, `run="r" status=failed priority=P0`, f.String())
}
