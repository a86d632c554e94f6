package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func TestImpact_RecordsClassifications(t *testing.T) {
	db := testDB(t)

	var result ImpactResult
	out := mustExecute(t, "impact", releaseImpact, "--db", db, "--format", "json")
	decode(t, out, &result)

	assert.True(t, result.Recorded)
	require.Len(t, result.Impacts, 6)
	got := make(map[string]ir.ImpactCategory, len(result.Impacts))
	for _, row := range result.Impacts {
		got[row.FeatureID] = row.Category
	}
	assert.Equal(t, map[string]ir.ImpactCategory{
		"search":  ir.ImpactChanged,
		"export":  ir.ImpactBreaking,
		"login":   ir.ImpactRefactored,
		"refund":  ir.ImpactBreaking,
		"share":   ir.ImpactNew,
		"profile": ir.ImpactNew,
	}, got)
	assert.Equal(t, []string{"refund"}, result.Unresolved)

	// recorded impacts reach the report once a run exists
	generateCheckout(t, db)
	var report ReportResult
	out, _, _ = execute(t, "report", "--db", db, "--format", "json")
	decode(t, out, &report)
	assert.Len(t, report.Impacts, 6)
}

func TestImpact_Text(t *testing.T) {
	out := mustExecute(t, "impact", releaseImpact, "--db", testDB(t))

	assert.Contains(t, out, "✗ breaking   refund:")
	assert.Contains(t, out, "✓ breaking   export:")
	assert.Contains(t, out, "1 breaking change(s) need a migration note: [refund]")
	assert.NotContains(t, out, "dry run")
}

func TestImpact_DryRunNeedsNoDatabase(t *testing.T) {
	t.Setenv(DatabaseEnv, "")

	var result ImpactResult
	out := mustExecute(t, "impact", releaseImpact, "--dry-run", "--format", "json")
	decode(t, out, &result)
	assert.False(t, result.Recorded)
	assert.Len(t, result.Impacts, 6)
}

func TestImpact_MissingFile(t *testing.T) {
	out, _, err := execute(t, "impact", "testdata/impacts/absent.yaml", "--db", testDB(t), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "error", decode(t, out, nil).Status)
}
