package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Ledger is the authoritative record of which scenarios of the active run
// have been exercised, and with what result.
//
// Thread-safety model:
//   - Record on disjoint scenarios proceeds in parallel.
//   - Record on the same scenario serializes on that scenario's lock; the
//     last writer's status wins and every status change is kept in
//     history in receipt order.
//   - Register and Reset exclude all other calls while they run.
//
// The ledger never resets itself. Registering a new run keeps the status
// of scenarios it shares with earlier runs.
type Ledger struct {
	store  Store
	seq    Sequencer
	now    func() time.Time
	logger *slog.Logger

	mu     sync.RWMutex
	active string
	slots  map[string]*slot  // scenario id -> entry
	keys   map[string]string // context key -> scenario id, active run only
}

type slot struct {
	mu    sync.Mutex
	entry ir.LedgerEntry
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSequencer sets the source of event seq numbers. By default the ledger
// resumes a Clock after the last persisted event.
func WithSequencer(s Sequencer) Option {
	return func(l *Ledger) {
		l.seq = s
	}
}

// WithNow sets the wall clock used for observation timestamps.
func WithNow(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates an empty ledger backed by a MemoryStore.
func New(opts ...Option) *Ledger {
	l := newLedger(NewMemoryStore(), opts)
	if l.seq == nil {
		l.seq = NewClock()
	}
	return l
}

// Open loads a ledger from a store. The active run is the last run saved.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := newLedger(store, opts)

	runs, err := store.LoadRuns(ctx)
	if err != nil {
		return nil, l.storeError("load_runs", err)
	}
	entries, err := store.LoadEntries(ctx)
	if err != nil {
		return nil, l.storeError("load_entries", err)
	}

	if l.seq == nil {
		var last int64
		for _, e := range entries {
			last = max(last, e.LastSeq)
		}
		l.seq = NewClockAt(last)
	}

	if len(runs) > 0 {
		l.active = runs[len(runs)-1].ID
	}
	for _, e := range entries {
		l.slots[e.Scenario.ID] = &slot{entry: e}
		if e.RunID == l.active {
			l.keys[e.Scenario.ContextKey] = e.Scenario.ID
		}
	}

	l.logger.Debug("ledger opened", "run", l.active, "entries", len(entries))
	return l, nil
}

func newLedger(store Store, opts []Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
		slots:  make(map[string]*slot),
		keys:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ActiveRun returns the id of the run whose scenarios may be recorded, or
// "" before any run is registered.
func (l *Ledger) ActiveRun() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Register makes run the active run. Its scenarios become recordable in
// the given order; scenarios already known keep their status and history,
// new ones start pending.
func (l *Ledger) Register(ctx context.Context, run ir.Run, scenarios []ir.Scenario) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]ir.LedgerEntry, len(scenarios))
	for i, sc := range scenarios {
		e := ir.LedgerEntry{Status: ir.StatusPending}
		if s, ok := l.slots[sc.ID]; ok {
			e = s.entry
		}
		e.Scenario = sc
		e.RunID = run.ID
		e.Position = i
		entries[i] = e
	}
	run.Scenarios = len(scenarios)

	if err := l.store.SaveRun(ctx, run, entries); err != nil {
		return l.storeError("save_run", err)
	}

	l.active = run.ID
	l.keys = make(map[string]string, len(entries))
	for _, e := range entries {
		if s, ok := l.slots[e.Scenario.ID]; ok {
			s.entry = e
		} else {
			l.slots[e.Scenario.ID] = &slot{entry: e}
		}
		l.keys[e.Scenario.ContextKey] = e.Scenario.ID
	}

	l.logger.Info("run registered",
		"run", run.ID,
		"model", run.ModelName,
		"strategy", run.Strategy,
		"scenarios", len(entries))
	return nil
}

// Observation is one reported execution result. ScenarioID may be a
// scenario id or its context key.
type Observation struct {
	ScenarioID string
	Status     ir.Status
	Reason     string
	Source     string
}

// Record applies an observation to the active run.
//
// Re-recording the current status and reason adds no history and only
// refreshes the last-observed time. Any other change appends one event.
// If the store write fails the ledger is left unchanged.
func (l *Ledger) Record(ctx context.Context, obs Observation) error {
	start := time.Now()
	defer func() {
		recordDuration.Observe(time.Since(start).Seconds())
	}()

	if _, err := ir.ParseStatus(string(obs.Status)); err != nil {
		return ir.NewConfigurationError("%v", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.lookup(obs.ScenarioID)
	if s == nil {
		recordsTotal.WithLabelValues(string(obs.Status), resultUnknown).Inc()
		return ir.NewUnknownScenarioError(obs.ScenarioID)
	}
	return l.apply(ctx, s, obs)
}

// RecordTrace records an observation for every scenario of the active run
// that matches a concrete execution trace (dimension -> value). Wildcards
// match on either side. It returns the ids recorded, in run order.
//
// Scenarios are recorded one at a time; a store failure part way leaves
// the earlier records in place.
func (l *Ledger) RecordTrace(ctx context.Context, trace map[string]string, status ir.Status, reason, source string) ([]string, error) {
	if _, err := ir.ParseStatus(string(status)); err != nil {
		return nil, ir.NewConfigurationError("%v", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []*slot
	for _, s := range l.activeSlots() {
		if s.entry.Scenario.Matches(trace) {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		recordsTotal.WithLabelValues(string(status), resultUnknown).Inc()
		return nil, ir.NewUnknownScenarioError(renderTrace(trace))
	}

	ids := make([]string, 0, len(matched))
	for _, s := range matched {
		obs := Observation{ScenarioID: s.entry.Scenario.ID, Status: status, Reason: reason, Source: source}
		if err := l.apply(ctx, s, obs); err != nil {
			return ids, err
		}
		ids = append(ids, obs.ScenarioID)
	}
	return ids, nil
}

// apply must be called with l.mu held for reading. The store decides the
// transition from its persisted entry; s.entry only caches the result.
func (l *Ledger) apply(ctx context.Context, s *slot, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs.ScenarioID = s.entry.Scenario.ID
	next, ev, err := l.store.ApplyRecord(ctx, obs, l.now(), l.drawSeq)
	if err != nil {
		if errors.Is(err, ErrNoEntry) {
			recordsTotal.WithLabelValues(string(obs.Status), resultUnknown).Inc()
			return ir.NewUnknownScenarioError(obs.ScenarioID)
		}
		recordsTotal.WithLabelValues(string(obs.Status), resultError).Inc()
		return l.storeError("apply_record", err)
	}
	// Identity fields are read without the slot lock; only touch the
	// fields a record may change.
	s.entry.Status, s.entry.Reason = next.Status, next.Reason
	s.entry.LastObserved, s.entry.LastSeq = next.LastObserved, next.LastSeq

	result := resultUnchanged
	if ev != nil {
		result = resultChanged
		l.logger.Debug("scenario recorded",
			"scenario", next.Scenario.ContextKey,
			"from", ev.From,
			"to", ev.To,
			"seq", ev.Seq,
			"source", obs.Source)
	}
	recordsTotal.WithLabelValues(string(obs.Status), result).Inc()
	return nil
}

// drawSeq is the ledger's SeqSource. It moves the sequencer past seqs
// persisted by other writers before drawing.
func (l *Ledger) drawSeq(floor int64) int64 {
	l.seq.Advance(floor)
	return l.seq.Next()
}

// Transition applies obs to entry as observed at the given time. A change
// of status or reason yields one event stamped with seq(); a repeat only
// refreshes LastObserved and yields none. Store implementations call it
// on their persisted copy inside ApplyRecord.
func Transition(entry ir.LedgerEntry, obs Observation, at time.Time, seq func() int64) (ir.LedgerEntry, *ir.LedgerEvent) {
	entry.LastObserved = at
	if entry.Status == obs.Status && entry.Reason == obs.Reason {
		return entry, nil
	}
	ev := &ir.LedgerEvent{
		Seq:        seq(),
		ScenarioID: entry.Scenario.ID,
		From:       entry.Status,
		To:         obs.Status,
		Reason:     obs.Reason,
		Source:     obs.Source,
		At:         at,
	}
	entry.Status = obs.Status
	entry.Reason = obs.Reason
	entry.LastSeq = ev.Seq
	return entry, ev
}

// lookup resolves an id or context key within the active run. Must be
// called with l.mu held.
func (l *Ledger) lookup(idOrKey string) *slot {
	if id, ok := l.keys[idOrKey]; ok {
		idOrKey = id
	}
	s, ok := l.slots[idOrKey]
	if !ok || l.active == "" || s.entry.RunID != l.active {
		return nil
	}
	return s
}

// activeSlots returns the active run's slots in run order. Must be called
// with l.mu held.
func (l *Ledger) activeSlots() []*slot {
	out := make([]*slot, 0, len(l.keys))
	for _, id := range l.keys {
		out = append(out, l.slots[id])
	}
	slices.SortFunc(out, func(a, b *slot) int {
		return cmp.Compare(a.entry.Position, b.entry.Position)
	})
	return out
}

// Entry returns the current state of one scenario of the active run.
func (l *Ledger) Entry(idOrKey string) (ir.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.lookup(idOrKey)
	if s == nil {
		return ir.LedgerEntry{}, ir.NewUnknownScenarioError(idOrKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry, nil
}

// Entries returns the active run's entries in run order.
func (l *Ledger) Entries() []ir.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	slots := l.activeSlots()
	out := make([]ir.LedgerEntry, len(slots))
	for i, s := range slots {
		s.mu.Lock()
		out[i] = s.entry
		s.mu.Unlock()
	}
	return out
}

// Events returns one scenario's history in receipt order.
func (l *Ledger) Events(ctx context.Context, idOrKey string) ([]ir.LedgerEvent, error) {
	l.mu.RLock()
	s := l.lookup(idOrKey)
	var id string
	if s != nil {
		id = s.entry.Scenario.ID
	}
	l.mu.RUnlock()
	if s == nil {
		return nil, ir.NewUnknownScenarioError(idOrKey)
	}

	events, err := l.store.LoadEvents(ctx, id)
	if err != nil {
		return nil, l.storeError("load_events", err)
	}
	return events, nil
}

// Runs returns every registered run, oldest first.
func (l *Ledger) Runs(ctx context.Context) ([]ir.Run, error) {
	runs, err := l.store.LoadRuns(ctx)
	if err != nil {
		return nil, l.storeError("load_runs", err)
	}
	return runs, nil
}

// RecordImpact stores an impact record, replacing any earlier record for
// the same feature.
func (l *Ledger) RecordImpact(ctx context.Context, rec ir.ImpactRecord) error {
	if err := l.store.SaveImpact(ctx, rec); err != nil {
		return l.storeError("save_impact", err)
	}
	l.logger.Debug("impact recorded", "feature", rec.FeatureID, "category", rec.Category)
	return nil
}

// Impacts returns every impact record ordered by feature id.
func (l *Ledger) Impacts(ctx context.Context) ([]ir.ImpactRecord, error) {
	recs, err := l.store.LoadImpacts(ctx)
	if err != nil {
		return nil, l.storeError("load_impacts", err)
	}
	return recs, nil
}

// Reset clears every run, entry, event and impact. It is never called by
// the ledger itself.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Reset(ctx); err != nil {
		return l.storeError("reset", err)
	}
	l.active = ""
	l.slots = make(map[string]*slot)
	l.keys = make(map[string]string)

	l.logger.Info("ledger reset")
	return nil
}

func (l *Ledger) storeError(op string, err error) error {
	storeErrorsTotal.WithLabelValues(op).Inc()
	l.logger.Warn("ledger store failure", "op", op, "error", err)
	return ir.NewStoreUnavailableError(op, err)
}

// renderTrace prints a trace as sorted dim=value pairs.
func renderTrace(trace map[string]string) string {
	keys := make([]string, 0, len(trace))
	for k := range trace {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, trace[k])
	}
	return strings.Join(parts, ",")
}
