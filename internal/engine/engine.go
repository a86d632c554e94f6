package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agent-next/behavior-driven-testing/internal/compiler"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

// Engine ties a loaded model to a coverage ledger.
//
// The engine holds at most one model. Each Generate call draws a scenario
// set from it and registers that set in the ledger as a new run, which
// becomes the run that RecordResult and Report operate on.
//
// Thread-safety model:
//   - LoadModel/SetModel and Generate serialize with each other.
//   - RecordResult and Report are safe from any goroutine and only take
//     the ledger's locks.
type Engine struct {
	ledger  *ledger.Ledger
	runIDs  RunIDGenerator
	now     func() time.Time
	genOpts []GeneratorOption
	logger  *slog.Logger

	mu        sync.RWMutex
	model     *ir.Model
	modelHash string
	gen       *Generator
	last      *Result // most recent generation, for omitted scenarios
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLedger sets the coverage ledger. By default the engine keeps an
// in-memory ledger.
func WithLedger(l *ledger.Ledger) EngineOption {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithRunIDGenerator sets the source of run ids. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithNow sets the wall clock stamped on runs.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger for the engine and its generators.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithGeneratorOptions passes options to every generator the engine builds,
// e.g. WithCriticalPredicate.
func WithGeneratorOptions(opts ...GeneratorOption) EngineOption {
	return func(e *Engine) {
		e.genOpts = append(e.genOpts, opts...)
	}
}

// New creates an engine with no model loaded.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		runIDs: UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		e.ledger = ledger.New(ledger.WithLogger(e.logger))
	}
	return e
}

// LoadModel loads, validates and installs a model document. The format
// follows the file extension (.cue, .yaml/.yml, .json).
func (e *Engine) LoadModel(path string) (*ir.Model, error) {
	m, err := compiler.LoadModel(path)
	if err != nil {
		return nil, err
	}
	if err := e.SetModel(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetModel validates and installs an in-memory model, replacing any
// earlier one. The ledger keeps its state.
func (e *Engine) SetModel(m *ir.Model) error {
	opts := append([]GeneratorOption{WithGeneratorLogger(e.logger)}, e.genOpts...)
	gen, err := NewGenerator(m, opts...)
	if err != nil {
		return err
	}
	hash, err := ir.ModelHash(m)
	if err != nil {
		return ir.NewConfigurationError("hash model %q: %v", m.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.model, e.modelHash, e.gen, e.last = m, hash, gen, nil

	e.logger.Info("model loaded",
		"model", m.Name,
		"dimensions", len(m.Dimensions),
		"guards", len(m.Guards),
		"branches", len(m.Branches),
		"hash", hash)
	return nil
}

// Model returns the installed model, or nil.
func (e *Engine) Model() *ir.Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Ledger returns the engine's coverage ledger.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Generate draws the scenario set for a strategy and registers it as the
// ledger's active run. On any error nothing is registered.
func (e *Engine) Generate(ctx context.Context, strategy Strategy) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen == nil {
		return nil, ir.NewConfigurationError("no model loaded")
	}

	res, err := e.gen.Generate(ctx, strategy)
	if err != nil {
		return nil, err
	}

	run := ir.Run{
		ID:        e.runIDs.Generate(),
		ModelName: e.model.Name,
		ModelHash: e.modelHash,
		Strategy:  string(strategy),
		CreatedAt: e.now().UTC(),
	}
	if err := e.ledger.Register(ctx, run, res.Scenarios); err != nil {
		return nil, err
	}
	res.RunID = run.ID
	e.last = res

	e.logger.Info("scenarios generated",
		"run", run.ID,
		"model", run.ModelName,
		"strategy", strategy,
		"scenarios", len(res.Scenarios),
		"omitted", len(res.Omitted))
	return res, nil
}

// RecordResult records the status of one scenario of the active run, by
// scenario id or context key.
func (e *Engine) RecordResult(ctx context.Context, idOrKey string, status ir.Status, reason string) error {
	return e.ledger.Record(ctx, ledger.Observation{
		ScenarioID: idOrKey,
		Status:     status,
		Reason:     reason,
	})
}

// RecordTrace records a status for every active scenario matching a
// concrete execution trace.
func (e *Engine) RecordTrace(ctx context.Context, trace map[string]string, status ir.Status, reason, source string) ([]string, error) {
	return e.ledger.RecordTrace(ctx, trace, status, reason, source)
}

// RecordImpact stores a classified impact record for reporting.
func (e *Engine) RecordImpact(ctx context.Context, rec ir.ImpactRecord) error {
	return e.ledger.RecordImpact(ctx, rec)
}

// omitted returns the omissions of the last generation if it is still the
// ledger's active run.
func (e *Engine) omitted() []Omission {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil || e.last.RunID != e.ledger.ActiveRun() {
		return nil
	}
	return e.last.Omitted
}
