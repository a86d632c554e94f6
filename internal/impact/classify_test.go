package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func obj(kv ...any) ir.IRObject {
	out := make(ir.IRObject)
	for i := 0; i+1 < len(kv); i += 2 {
		v, err := ir.FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		out[kv[i].(string)] = v
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		before     ir.IRValue
		after      ir.IRValue
		refactored bool
		want       ir.ImpactCategory
		diffs      []string
	}{
		{
			name: "both absent",
			want: ir.ImpactNone,
		},
		{
			name:   "identical",
			before: obj("total", 10),
			after:  obj("total", 10),
			want:   ir.ImpactNone,
		},
		{
			name:       "identical via a different path",
			before:     obj("total", 10),
			after:      obj("total", 10),
			refactored: true,
			want:       ir.ImpactRefactored,
		},
		{
			name:   "leaf value changed",
			before: obj("total", 10, "currency", "EUR"),
			after:  obj("total", 12, "currency", "EUR"),
			want:   ir.ImpactChanged,
			diffs:  []string{"changed $.total: 10 -> 12"},
		},
		{
			name:   "key removed",
			before: obj("total", 10, "tax", 2),
			after:  obj("total", 10),
			want:   ir.ImpactBreaking,
			diffs:  []string{"removed $.tax"},
		},
		{
			name:   "key added",
			before: obj("total", 10),
			after:  obj("total", 10, "tax", 2),
			want:   ir.ImpactNew,
			diffs:  []string{"added $.tax"},
		},
		{
			name:  "absent before",
			after: ir.IRString("enabled"),
			want:  ir.ImpactNew,
			diffs: []string{"added $"},
		},
		{
			name:   "absent after",
			before: ir.IRString("enabled"),
			want:   ir.ImpactBreaking,
			diffs:  []string{"removed $"},
		},
		{
			name:   "kind changed",
			before: obj("id", 7),
			after:  obj("id", "7"),
			want:   ir.ImpactBreaking,
			diffs:  []string{"kind $.id: number -> string"},
		},
		{
			name:   "element removed",
			before: obj("tags", []any{"a", "b"}),
			after:  obj("tags", []any{"a"}),
			want:   ir.ImpactBreaking,
			diffs:  []string{"removed $.tags[1]"},
		},
		{
			name:   "element added",
			before: obj("tags", []any{"a"}),
			after:  obj("tags", []any{"a", "b"}),
			want:   ir.ImpactNew,
			diffs:  []string{"added $.tags[1]"},
		},
		{
			name:   "breaking beats changed",
			before: obj("a", 1, "b", 1),
			after:  obj("a", 2),
			want:   ir.ImpactBreaking,
			diffs:  []string{"changed $.a: 1 -> 2", "removed $.b"},
		},
		{
			name:       "changed beats refactored",
			before:     obj("a", 1),
			after:      obj("a", 2),
			refactored: true,
			want:       ir.ImpactChanged,
			diffs:      []string{"changed $.a: 1 -> 2"},
		},
		{
			name:   "nested change",
			before: obj("user", map[string]any{"name": "ada", "roles": []any{"admin"}}),
			after:  obj("user", map[string]any{"name": "ada", "roles": []any{"viewer"}}),
			want:   ir.ImpactChanged,
			diffs:  []string{`changed $.user.roles[0]: "admin" -> "viewer"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diffs := Classify(tt.before, tt.after, tt.refactored)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.diffs, diffs)
		})
	}
}

func TestClassify_NullIsAValue(t *testing.T) {
	got, diffs := Classify(obj("deleted_at", nil), obj("deleted_at", "2025-01-01"), false)
	require.Equal(t, ir.ImpactBreaking, got, "null to string is a kind change")
	assert.Equal(t, []string{"kind $.deleted_at: null -> string"}, diffs)
}
