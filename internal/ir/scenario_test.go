package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScenario(t *testing.T) {
	a := assign("auth", "unauthenticated", "credits", Wildcard)
	sc, err := NewScenario(a)
	require.NoError(t, err)

	assert.Equal(t, "auth_unauthenticated_credits_*", sc.ContextKey)
	assert.Equal(t, MustScenarioID(a), sc.ID)

	a[0].Value = "changed"
	assert.Equal(t, "unauthenticated", sc.Assignment[0].Value, "assignment is copied")
}

func TestScenario_Matches(t *testing.T) {
	sc, err := NewScenario(assign("auth", "unauthenticated", "credits", Wildcard))
	require.NoError(t, err)

	tests := []struct {
		name  string
		trace map[string]string
		want  bool
	}{
		{"wildcard side matches any value", map[string]string{"auth": "unauthenticated", "credits": "exact"}, true},
		{"concrete mismatch", map[string]string{"auth": "authenticated", "credits": "exact"}, false},
		{"unmentioned dimension", map[string]string{"credits": "exact"}, true},
		{"wildcard in trace", map[string]string{"auth": Wildcard}, true},
		{"empty trace", map[string]string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sc.Matches(tt.trace))
		})
	}
}

func TestScenario_Satisfies(t *testing.T) {
	sc, err := NewScenario(assign("auth", "authenticated", "credits", Wildcard))
	require.NoError(t, err)

	assert.True(t, sc.Satisfies(Selector{"auth": "authenticated"}))
	assert.True(t, sc.Satisfies(Selector{"credits": "exact"}), "wildcard satisfies any value")
	assert.False(t, sc.Satisfies(Selector{"auth": "unauthenticated"}))
	assert.False(t, sc.Satisfies(Selector{"plan": "gold"}), "unknown dimension")
	assert.True(t, sc.Satisfies(nil))
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "passed", "failed", "skipped"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}
	_, err := ParseStatus("flaky")
	assert.Error(t, err)
}

func TestLedgerEntry_Covered(t *testing.T) {
	tests := []struct {
		status Status
		reason string
		want   bool
	}{
		{StatusPassed, "", true},
		{StatusSkipped, "no driver", true},
		{StatusSkipped, "", false},
		{StatusFailed, "timeout", false},
		{StatusPending, "", false},
	}
	for _, tt := range tests {
		e := LedgerEntry{Status: tt.status, Reason: tt.reason}
		assert.Equal(t, tt.want, e.Covered(), "%s %q", tt.status, tt.reason)
	}
}

func TestImpactRecord_Unresolved(t *testing.T) {
	assert.True(t, ImpactRecord{Category: ImpactBreaking}.Unresolved())
	assert.False(t, ImpactRecord{Category: ImpactBreaking, MigrationNote: "v2"}.Unresolved())
	assert.False(t, ImpactRecord{Category: ImpactChanged}.Unresolved())
}
