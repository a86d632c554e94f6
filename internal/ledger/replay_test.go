package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func TestReplay_Consistent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, nil)
	scs := registerCheckout(t, l, "run-1")

	record(t, l, scs[0].ID, ir.StatusPassed, "")
	record(t, l, scs[0].ID, ir.StatusFailed, "")
	record(t, l, scs[1].ID, ir.StatusSkipped, "not on staging")
	record(t, l, scs[1].ID, ir.StatusSkipped, "not on staging")

	report, err := l.Replay(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "mismatches: %v", report.Mismatches)
	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 4, report.Scenarios)
}

func TestReplay_DetectsTamperedEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLedger(t, store)
	scs := registerCheckout(t, l, "run-1")
	record(t, l, scs[0].ID, ir.StatusFailed, "")

	// overwrite the entry without history
	e, err := l.Entry(scs[0].ID)
	require.NoError(t, err)
	e.Status = ir.StatusPassed
	store.mu.Lock()
	store.put(e, nil)
	store.mu.Unlock()

	report, err := l.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	m := report.Mismatches[0]
	assert.Equal(t, scs[0].ID, m.ScenarioID)
	assert.Equal(t, ir.StatusPassed, m.Stored)
	assert.Equal(t, ir.StatusFailed, m.Replayed)
}

func TestReplay_DetectsBrokenChain(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLedger(t, store)
	scs := registerCheckout(t, l, "run-1")
	record(t, l, scs[0].ID, ir.StatusPassed, "")

	e, err := l.Entry(scs[0].ID)
	require.NoError(t, err)
	e.Status = ir.StatusFailed
	e.LastSeq = 2
	store.mu.Lock()
	store.put(e, &ir.LedgerEvent{
		Seq:        2,
		ScenarioID: scs[0].ID,
		From:       ir.StatusPending,
		To:         ir.StatusFailed,
	})
	store.mu.Unlock()

	report, err := l.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Contains(t, report.Mismatches[0].Detail, "starts from pending but history reached passed")
}

func TestReplay_OrphanHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLedger(t, store)
	registerCheckout(t, l, "run-1")

	// history with no entry behind it
	store.mu.Lock()
	store.put(ir.LedgerEntry{Scenario: ir.Scenario{ID: "ghost"}, Status: ir.StatusPassed, LastSeq: 9},
		&ir.LedgerEvent{Seq: 9, ScenarioID: "ghost", From: ir.StatusPending, To: ir.StatusPassed})
	delete(store.entries, "ghost")
	store.mu.Unlock()

	report, err := l.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "ghost", report.Mismatches[0].ScenarioID)
	assert.Equal(t, "history for a scenario with no entry", report.Mismatches[0].Detail)
}
