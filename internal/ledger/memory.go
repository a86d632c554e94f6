package ledger

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// MemoryStore is an in-process Store. Nothing survives the process; use it
// for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.Mutex
	runs    []ir.Run
	entries map[string]ir.LedgerEntry
	events  []ir.LedgerEvent
	lastSeq int64
	impacts map[string]ir.ImpactRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]ir.LedgerEntry),
		impacts: make(map[string]ir.ImpactRecord),
	}
}

func (m *MemoryStore) SaveRun(ctx context.Context, run ir.Run, entries []ir.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// a re-registered run id moves to the end
	m.runs = slices.DeleteFunc(m.runs, func(r ir.Run) bool { return r.ID == run.ID })
	m.runs = append(m.runs, run)
	for _, e := range entries {
		m.entries[e.Scenario.ID] = e
	}
	return nil
}

func (m *MemoryStore) ApplyRecord(ctx context.Context, obs Observation, at time.Time, next SeqSource) (ir.LedgerEntry, *ir.LedgerEvent, error) {
	if err := ctx.Err(); err != nil {
		return ir.LedgerEntry{}, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[obs.ScenarioID]
	if !ok {
		return ir.LedgerEntry{}, nil, ErrNoEntry
	}
	entry, ev := Transition(current, obs, at, func() int64 { return next(m.lastSeq) })
	m.put(entry, ev)
	return entry, ev, nil
}

// put writes an entry and an optional event as they are. Must be called
// with m.mu held.
func (m *MemoryStore) put(entry ir.LedgerEntry, event *ir.LedgerEvent) {
	m.entries[entry.Scenario.ID] = entry
	if event != nil {
		m.events = append(m.events, *event)
		m.lastSeq = max(m.lastSeq, event.Seq)
	}
}

func (m *MemoryStore) LoadEntries(ctx context.Context) ([]ir.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ir.LedgerEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b ir.LedgerEntry) int {
		return cmp.Compare(a.Scenario.ID, b.Scenario.ID)
	})
	return out, nil
}

func (m *MemoryStore) LoadEvents(ctx context.Context, scenarioID string) ([]ir.LedgerEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ir.LedgerEvent
	for _, ev := range m.events {
		if scenarioID == "" || ev.ScenarioID == scenarioID {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, func(a, b ir.LedgerEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

func (m *MemoryStore) LoadRuns(ctx context.Context) ([]ir.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.runs), nil
}

func (m *MemoryStore) SaveImpact(ctx context.Context, rec ir.ImpactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.impacts[rec.FeatureID] = rec
	return nil
}

func (m *MemoryStore) LoadImpacts(ctx context.Context) ([]ir.ImpactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ir.ImpactRecord, 0, len(m.impacts))
	for _, r := range m.impacts {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b ir.ImpactRecord) int {
		return cmp.Compare(a.FeatureID, b.FeatureID)
	})
	return out, nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = nil
	m.entries = make(map[string]ir.LedgerEntry)
	m.events = nil
	m.lastSeq = 0
	m.impacts = make(map[string]ir.ImpactRecord)
	return nil
}
