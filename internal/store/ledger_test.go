package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
	"github.com/agent-next/behavior-driven-testing/internal/queryir"
	"github.com/agent-next/behavior-driven-testing/internal/testutil"
)

func TestSaveRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	sc := createTestScenario(t, ir.P0, "auth", "authenticated", "credits", "insufficient")
	sc.Factors = ir.FactorScores{Impact: "blocking", Security: "weakness"}
	sc.Branches = []ir.BranchOutcome{{BranchID: "balance_check", Outcome: false, Priority: ir.P0}}
	entries := createTestEntries("run-1", sc)

	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 1), entries))

	got, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("LoadEntries() mismatch (-want +got):\n%s", diff)
	}

	runs, err := s.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.True(t, testutil.Epoch.Equal(runs[0].CreatedAt))
}

func TestSaveRun_OrderAndReplacement(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 0), nil))
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-2", 0), nil))
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 0), nil))

	runs, err := s.LoadRuns(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"run-2", "run-1"}, ids, "a re-saved run moves to the end")
}

func TestSaveRun_UpsertsSharedScenario(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	sc := createTestScenario(t, ir.P2, "browser", "chrome")
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 1), createTestEntries("run-1", sc)))

	carried := createTestEntries("run-2", sc)
	carried[0].Status = ir.StatusPassed
	carried[0].LastSeq = 4
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-2", 1), carried))

	got, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-2", got[0].RunID)
	assert.Equal(t, ir.StatusPassed, got[0].Status)
	assert.Equal(t, int64(4), got[0].LastSeq)
}

// nextAfter is a SeqSource that always continues from the persisted floor.
func nextAfter(floor int64) int64 { return floor + 1 }

func TestApplyRecord_WithEvent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := createTestScenario(t, ir.P0, "browser", "chrome")
	b := createTestScenario(t, ir.P1, "browser", "firefox")
	entries := createTestEntries("run-1", a, b)
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 2), entries))

	obs := ledger.Observation{ScenarioID: b.ID, Status: ir.StatusSkipped, Reason: "no driver", Source: "ci"}
	entry, ev, err := s.ApplyRecord(ctx, obs, testutil.Epoch, nextAfter)
	require.NoError(t, err)
	want := ir.LedgerEvent{
		Seq: 1, ScenarioID: b.ID, From: ir.StatusPending, To: ir.StatusSkipped,
		Reason: "no driver", Source: "ci", At: testutil.Epoch,
	}
	require.NotNil(t, ev)
	if diff := cmp.Diff(want, *ev); diff != "" {
		t.Errorf("returned event mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(1), entry.LastSeq)

	// a repeat only refreshes the observation time
	entry, ev, err = s.ApplyRecord(ctx, obs, testutil.Epoch.Add(1), nextAfter)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, int64(1), entry.LastSeq)

	events, err := s.LoadEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	if diff := cmp.Diff(want, events[0]); diff != "" {
		t.Errorf("stored event mismatch (-want +got):\n%s", diff)
	}

	events, err = s.LoadEvents(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	got, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	for _, e := range got {
		if e.Scenario.ID == b.ID {
			assert.Equal(t, "no driver", e.Reason)
			assert.True(t, testutil.Epoch.Add(1).Equal(e.LastObserved))
		}
	}
}

func TestApplyRecord_UnknownScenario(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.ApplyRecord(context.Background(),
		ledger.Observation{ScenarioID: "missing", Status: ir.StatusPassed}, testutil.Epoch, nextAfter)
	assert.ErrorIs(t, err, ledger.ErrNoEntry)
}

func TestApplyRecord_FloorIsHighestPersistedSeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := createTestScenario(t, ir.P0, "browser", "chrome")
	b := createTestScenario(t, ir.P0, "browser", "firefox")
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 2), createTestEntries("run-1", a, b)))

	jump := func(int64) int64 { return 40 }
	_, _, err := s.ApplyRecord(ctx, ledger.Observation{ScenarioID: a.ID, Status: ir.StatusPassed}, testutil.Epoch, jump)
	require.NoError(t, err)

	var floors []int64
	spy := func(floor int64) int64 {
		floors = append(floors, floor)
		return floor + 1
	}
	_, ev, err := s.ApplyRecord(ctx, ledger.Observation{ScenarioID: b.ID, Status: ir.StatusFailed}, testutil.Epoch, spy)
	require.NoError(t, err)
	assert.Equal(t, []int64{40}, floors)
	assert.Equal(t, int64(41), ev.Seq)
}

func TestApplyRecord_DuplicateEventSeqRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	sc := createTestScenario(t, ir.P0, "browser", "chrome")
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 1), createTestEntries("run-1", sc)))

	always1 := func(int64) int64 { return 1 }
	_, _, err := s.ApplyRecord(ctx, ledger.Observation{ScenarioID: sc.ID, Status: ir.StatusPassed}, testutil.Epoch, always1)
	require.NoError(t, err)

	_, _, err = s.ApplyRecord(ctx, ledger.Observation{ScenarioID: sc.ID, Status: ir.StatusFailed}, testutil.Epoch, always1)
	require.Error(t, err)

	got, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusPassed, got[0].Status, "entry update rolled back with the event")
}

func TestLoadEvents_SeqOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := createTestScenario(t, ir.P0, "browser", "chrome")
	b := createTestScenario(t, ir.P0, "browser", "firefox")
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 2), createTestEntries("run-1", a, b)))

	// written out of seq order
	tx, err := s.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	for _, w := range []struct {
		id  string
		seq int64
	}{{b.ID, 3}, {a.ID, 1}, {b.ID, 2}} {
		ev := ir.LedgerEvent{Seq: w.seq, ScenarioID: w.id, From: ir.StatusPending, To: ir.StatusPassed, At: testutil.Epoch}
		require.NoError(t, insertEvent(ctx, tx, ev))
	}
	require.NoError(t, tx.Commit())

	events, err := s.LoadEvents(ctx, "")
	require.NoError(t, err)
	var seqs []int64
	for _, ev := range events {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}

func TestImpacts_UpsertAndOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	big := ir.IRObject{"id": ir.IRInt(1 << 60), "ratio": ir.IRDecimal("0.25"), "deleted_at": ir.IRNull{}}
	require.NoError(t, s.SaveImpact(ctx, ir.ImpactRecord{
		FeatureID: "search", Category: ir.ImpactChanged,
		Before: big, After: ir.IRObject{"id": ir.IRInt(1)},
		Differences: []string{"changed $.id: 1152921504606846976 -> 1"},
	}))
	require.NoError(t, s.SaveImpact(ctx, ir.ImpactRecord{FeatureID: "export", Category: ir.ImpactBreaking}))
	require.NoError(t, s.SaveImpact(ctx, ir.ImpactRecord{FeatureID: "export", Category: ir.ImpactBreaking, MigrationNote: "v2 format"}))

	recs, err := s.LoadImpacts(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "export", recs[0].FeatureID)
	assert.Equal(t, "v2 format", recs[0].MigrationNote)
	assert.Nil(t, recs[0].Before)
	assert.Nil(t, recs[0].Differences)

	assert.Equal(t, "search", recs[1].FeatureID)
	assert.True(t, ir.Equal(big, recs[1].Before), "snapshot keeps int64 precision and nulls")
	assert.Equal(t, `{"deleted_at":null,"id":1152921504606846976,"ratio":0.25}`, recs[1].BeforeJSON)
	assert.Equal(t, []string{"changed $.id: 1152921504606846976 -> 1"}, recs[1].Differences)
}

func TestReset_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	sc := createTestScenario(t, ir.P0, "browser", "chrome")
	entries := createTestEntries("run-1", sc)
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 1), entries))
	_, _, err := s.ApplyRecord(ctx, ledger.Observation{ScenarioID: sc.ID, Status: ir.StatusPassed}, testutil.Epoch, nextAfter)
	require.NoError(t, err)
	require.NoError(t, s.SaveImpact(ctx, ir.ImpactRecord{FeatureID: "x", Category: ir.ImpactNew}))

	require.NoError(t, s.Reset(ctx))

	runs, err := s.LoadRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
	got, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	events, err := s.LoadEvents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, events)
	recs, err := s.LoadImpacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestQueryEntries(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := createTestScenario(t, ir.P0, "browser", "chrome")
	b := createTestScenario(t, ir.P1, "browser", "firefox")
	c := createTestScenario(t, ir.P0, "browser", "ie")
	entries := createTestEntries("run-1", a, b, c)
	entries[1].Status = ir.StatusFailed
	entries[2].Status = ir.StatusFailed
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", 3), entries))

	got, err := s.QueryEntries(ctx, queryir.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, a.ID, got[0].Scenario.ID, "position order")

	got, err = s.QueryEntries(ctx, queryir.EntryFilter{
		RunID:      "run-1",
		Statuses:   []ir.Status{ir.StatusFailed},
		Priorities: []ir.Tier{ir.P0},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].Scenario.ID)

	got, err = s.QueryEntries(ctx, queryir.EntryFilter{RunID: "run-9"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryEntries_AgreesWithMatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	var scs []ir.Scenario
	for _, v := range []string{"a", "b", "c", "d", "e", "f"} {
		scs = append(scs, createTestScenario(t, ir.Tiers[len(scs)%4], "dim", v))
	}
	entries := createTestEntries("run-1", scs...)
	statuses := []ir.Status{ir.StatusPending, ir.StatusPassed, ir.StatusFailed}
	for i := range entries {
		entries[i].Status = statuses[i%3]
	}
	require.NoError(t, s.SaveRun(ctx, createTestRun("run-1", len(entries)), entries))

	filters := []queryir.EntryFilter{
		{Statuses: []ir.Status{ir.StatusFailed}},
		{Priorities: []ir.Tier{ir.P0, ir.P3}},
		{RunID: "run-1", Statuses: []ir.Status{ir.StatusPending, ir.StatusPassed}, Priorities: []ir.Tier{ir.P1}},
	}
	for _, f := range filters {
		sqlRows, err := s.QueryEntries(ctx, f)
		require.NoError(t, err)
		mem := f.Filter(entries)
		if mem == nil {
			mem = []ir.LedgerEntry{}
		}
		if diff := cmp.Diff(mem, sqlRows); diff != "" {
			t.Errorf("filter %s: SQL and in-memory disagree (-mem +sql):\n%s", f, diff)
		}
	}
}

func openLedger(t *testing.T, s *Store) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), s,
		ledger.WithNow(testutil.NewTimeSource().Now),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return l
}

func TestLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := Open(path)
	require.NoError(t, err)
	l := openLedger(t, s)

	a := createTestScenario(t, ir.P0, "auth", "authenticated")
	b := createTestScenario(t, ir.P1, "auth", "unauthenticated")
	require.NoError(t, l.Register(ctx, createTestRun("run-1", 2), []ir.Scenario{a, b}))
	require.NoError(t, l.Record(ctx, ledger.Observation{ScenarioID: a.ID, Status: ir.StatusPassed, Source: "ci"}))
	require.NoError(t, l.Record(ctx, ledger.Observation{ScenarioID: b.ID, Status: ir.StatusFailed}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	l = openLedger(t, s)

	assert.Equal(t, "run-1", l.ActiveRun())
	c := l.Completion()
	assert.Equal(t, ledger.Counts{Total: 2, Covered: 1, Failed: 1}, c.Counts)

	// seq resumes after the persisted history
	require.NoError(t, l.Record(ctx, ledger.Observation{ScenarioID: b.ID, Status: ir.StatusPassed}))
	events, err := s.LoadEvents(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[1].Seq)

	report, err := l.Replay(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report)
}

func TestLedger_TwoWritersShareOneFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s1, err := Open(path)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	a := createTestScenario(t, ir.P0, "auth", "authenticated")
	b := createTestScenario(t, ir.P1, "auth", "unauthenticated")
	first := openLedger(t, s1)
	require.NoError(t, first.Register(ctx, createTestRun("run-1", 2), []ir.Scenario{a, b}))

	// both runners open before either records
	second := openLedger(t, s2)
	require.NoError(t, first.Record(ctx, ledger.Observation{ScenarioID: a.ID, Status: ir.StatusPassed}))

	// disjoint scenario: the second runner's clock lags the file
	require.NoError(t, second.Record(ctx, ledger.Observation{ScenarioID: b.ID, Status: ir.StatusPassed}))
	// same scenario: the second runner's cached status is stale
	require.NoError(t, second.Record(ctx, ledger.Observation{ScenarioID: a.ID, Status: ir.StatusFailed}))
	// and the first runner now lags in turn
	require.NoError(t, first.Record(ctx, ledger.Observation{ScenarioID: b.ID, Status: ir.StatusSkipped}))

	events, err := s1.LoadEvents(ctx, "")
	require.NoError(t, err)
	var seqs []int64
	for _, ev := range events {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs)
	assert.Equal(t, ir.StatusPassed, events[2].From, "history continues from the other runner's record")
	assert.Equal(t, ir.StatusPassed, events[3].From)

	e, err := second.Entry(a.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusFailed, e.Status)

	for _, l := range []*ledger.Ledger{first, second} {
		report, err := l.Replay(ctx)
		require.NoError(t, err)
		assert.True(t, report.Consistent(), "mismatches: %v", report.Mismatches)
	}
}
