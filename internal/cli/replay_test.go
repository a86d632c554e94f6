package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/store"
)

func TestReplay_Consistent(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)

	var result ReplayResult
	out := mustExecute(t, "replay", "--db", db, "--format", "json")
	decode(t, out, &result)

	assert.Equal(t, 3, result.Events)
	assert.Equal(t, 4, result.Scenarios)
	assert.True(t, result.Deterministic)
	assert.True(t, result.Consistent)
	assert.Empty(t, result.Mismatches)

	text := mustExecute(t, "replay", "--db", db)
	assert.Contains(t, text, "Replayed 3 event(s) over 4 scenario(s)")
	assert.Contains(t, text, "✓ History is consistent with the ledger")
}

func TestReplay_DetectsTamperedEntry(t *testing.T) {
	db := testDB(t)
	recordCheckout(t, db)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE entries SET status = 'passed' WHERE context_key = ?`,
		"auth_authenticated_credits_insufficient")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	var result ReplayResult
	out, _, err := execute(t, "replay", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out, &result)
	assert.Equal(t, ErrCodeReplayMismatch, resp.Error.Code)
	assert.True(t, result.Deterministic)
	assert.False(t, result.Consistent)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, ir.StatusPassed, result.Mismatches[0].Stored)
	assert.Equal(t, ir.StatusPending, result.Mismatches[0].Replayed)

	text, _, err := execute(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Contains(t, text, "status differs from history (stored passed, replayed pending)")
}

func TestReplay_EmptyLedger(t *testing.T) {
	out := mustExecute(t, "replay", "--db", testDB(t))
	assert.Equal(t, "Ledger is empty.\n", out)
}
