package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func entryKeys(rows []EntryRow) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	return keys
}

// recordCheckout generates the checkout run and covers everything but
// the P0 scenario.
func recordCheckout(t *testing.T, db string) {
	t.Helper()
	generateCheckout(t, db)
	mustExecute(t, "record", "auth_authenticated_credits_sufficient", "--status", "passed", "--db", db)
	mustExecute(t, "record", "auth_authenticated_credits_exact", "--status", "skipped", "--reason", "no fixture", "--db", db)
	mustExecute(t, "record", "--trace", "auth=unauthenticated", "--status", "failed", "--db", db)
}

func TestReport_PendingP0BlocksRelease(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)

	var result ReportResult
	out, _, err := execute(t, "report", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeReleaseBlocked, resp.Error.Code)

	assert.Equal(t, "checkout", result.Model)
	assert.Equal(t, "exhaustive", result.Strategy)
	assert.Equal(t, 4, result.Coverage.Total)
	assert.Equal(t, 2, result.Coverage.Covered)
	assert.Equal(t, 1, result.Coverage.Pending)
	assert.Equal(t, 1, result.Coverage.Failed)
	assert.True(t, result.ReleaseBlocking)
	require.Len(t, result.Blockers, 1)
	assert.Equal(t, engine.BlockerPendingP0, result.Blockers[0].Kind)
	assert.Equal(t, "auth_authenticated_credits_insufficient", result.Blockers[0].Name)
}

func TestReport_Text(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)

	out, _, err := execute(t, "report", "--db", db)
	require.Error(t, err)
	assert.EqualError(t, err, "release blocked by 1 item(s)")

	assert.Contains(t, out, "Coverage: 2/4 covered (50%), 1 pending, 1 failed, 0 skipped")
	assert.Contains(t, out, "✓ passed   auth_authenticated_credits_sufficient")
	assert.Contains(t, out, "✗ failed   auth_unauthenticated_credits_*")
	assert.Contains(t, out, "✗ Release blocked\n  pending-p0: auth_authenticated_credits_insufficient\n")
}

func TestReport_NotBlocked(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)
	mustExecute(t, "record", "auth_authenticated_credits_insufficient", "--status", "failed", "--db", db)

	out := mustExecute(t, "report", "--db", db)
	assert.Contains(t, out, "✓ Release not blocked")

	var result ReportResult
	resp := decode(t, mustExecute(t, "report", "--db", db, "--format", "json"), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, result.ReleaseBlocking)
	assert.Empty(t, result.Blockers)
}

func TestReport_Filters(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)

	tests := []struct {
		name  string
		flags []string
		want  []string
	}{
		{"status", []string{"--status", "passed,skipped"}, []string{
			"auth_authenticated_credits_sufficient",
			"auth_authenticated_credits_exact",
		}},
		{"priority", []string{"--priority", "P1"}, []string{
			"auth_authenticated_credits_sufficient",
			"auth_unauthenticated_credits_*",
		}},
		{"both", []string{"--status", "failed", "--priority", "P1"}, []string{
			"auth_unauthenticated_credits_*",
		}},
		{"no match", []string{"--status", "pending", "--priority", "P2"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result ReportResult
			args := append([]string{"report", "--db", db, "--format", "json"}, tt.flags...)
			out, _, _ := execute(t, args...)
			decode(t, out, &result)

			assert.Equal(t, tt.want, entryKeys(result.Scenarios))
			assert.NotEmpty(t, result.Filter)
			// coverage always covers the whole run
			assert.Equal(t, 4, result.Coverage.Total)
		})
	}
}

func TestReport_InvalidFilter(t *testing.T) {
	out, _, err := execute(t, "report", "--db", testDB(t), "--priority", "P9", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeConfiguration, decode(t, out, nil).Error.Code)
}

func TestReport_UnresolvedImpactBlocksRelease(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)
	mustExecute(t, "record", "auth_authenticated_credits_insufficient", "--status", "passed", "--db", db)
	mustExecute(t, "impact", releaseImpact, "--db", db)

	var result ReportResult
	out, _, err := execute(t, "report", "--db", db, "--format", "json")
	require.Error(t, err)
	decode(t, out, &result)

	assert.Len(t, result.Impacts, 6)
	require.Len(t, result.Blockers, 1)
	assert.Equal(t, "unresolved-breaking-impact: refund", result.Blockers[0].String())
}

func TestReport_NoRun(t *testing.T) {
	_, _, err := execute(t, "report", "--db", testDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no active run")
}

func TestEntryFilter(t *testing.T) {
	filter, err := entryFilter([]string{"pending"}, []string{"P0", "P1"})
	require.NoError(t, err)
	assert.Equal(t, []ir.Status{ir.StatusPending}, filter.Statuses)
	assert.Equal(t, []ir.Tier{ir.P0, ir.P1}, filter.Priorities)

	_, err = entryFilter([]string{"done"}, nil)
	assert.True(t, ir.IsConfigurationError(err))
}
