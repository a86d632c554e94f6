package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset_RequiresConfirmation(t *testing.T) {
	db := testDB(t)
	generateCheckout(t, db)

	_, _, err := execute(t, "reset", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--yes")

	// the run survives
	_, _, err = execute(t, "report", "--db", db)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReset_ClearsLedger(t *testing.T) {
	db := testDB(t)
	gen := generateCheckout(t, db)
	mustExecute(t, "impact", releaseImpact, "--db", db)

	var result ResetResult
	out := mustExecute(t, "reset", "--db", db, "--yes", "--format", "json")
	decode(t, out, &result)
	assert.True(t, result.Reset)
	assert.Equal(t, gen.RunID, result.RunID)

	_, _, err := execute(t, "report", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active run")

	assert.Contains(t, mustExecute(t, "replay", "--db", db), "Ledger is empty.")
}
