package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func TestValidate_ValidQuery(t *testing.T) {
	query := Select{
		From:    "entries",
		Columns: []string{"scenario_id", "status"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "run_id", Value: ir.IRString("run-1")},
			In{Field: "status", Values: []ir.IRValue{ir.IRString("failed")}},
		}},
	}

	result := Validate(query)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
}

func TestValidate_PointerTypes(t *testing.T) {
	query := &Select{
		From:    "runs",
		Columns: []string{"id"},
		Filter:  &And{Predicates: []Predicate{&Equals{Field: "strategy", Value: ir.IRString("pairwise")}}},
	}
	assert.True(t, Validate(query).Valid)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"nil", nil, []string{"nil query"}},
		{"unknown table", Select{From: "invocations", Columns: []string{"id"}}, []string{`unknown table "invocations"`}},
		{"select star", Select{From: "entries"}, []string{"empty column list (SELECT *) - columns must be explicit"}},
		{"unknown column", Select{From: "events", Columns: []string{"seq", "flow"}}, []string{`unknown column "flow"`}},
		{
			"null and array literals",
			Select{From: "entries", Columns: []string{"status"}, Filter: And{Predicates: []Predicate{
				Equals{Field: "reason", Value: ir.IRNull{}},
				In{Field: "status", Values: []ir.IRValue{ir.IRArray{}}},
			}}},
			[]string{`field "reason" compared to NULL`, `field "status" compared to a array literal`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			require.False(t, result.Valid)
			assert.Equal(t, tt.want, result.Problems)
		})
	}
}

func TestTables_EntryColumnsMatchEntryFields(t *testing.T) {
	e := ir.LedgerEntry{}
	for _, col := range EntryColumns {
		if col == "scenario" || col == "last_observed" {
			continue // structured columns are not filterable in memory
		}
		_, ok := entryField(e, col)
		assert.True(t, ok, col)
	}
}
