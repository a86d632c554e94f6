package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/impact"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
	"github.com/agent-next/behavior-driven-testing/internal/store"
	"github.com/agent-next/behavior-driven-testing/internal/testutil"
)

// Harness executes one run file against a real engine and ledger.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a run file and returns the result.
//
// Each run executes in a fresh in-memory database for isolation, with a
// fixed run id, a deterministic seq clock and a fixed time source, so two
// executions of the same file produce identical traces.
//
// Execution flow:
//  1. Open an in-memory store and a ledger over it
//  2. Load the model and generate scenarios for the strategy
//  3. Apply steps in order
//  4. Classify and record impacts, if any
//  5. Build the report and evaluate assertions
//
// An error is returned only when the run cannot execute at all (bad model
// path, store failure). Step and assertion failures are reported in
// Result.Errors.
func Run(rf *RunFile) (*Result, error) {
	return RunContext(context.Background(), rf)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, rf *RunFile) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := testutil.NewTimeSource()

	led, err := ledger.Open(ctx, st,
		ledger.WithSequencer(testutil.NewDeterministicClock()),
		ledger.WithNow(ts.Now),
		ledger.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	opts := []engine.EngineOption{
		engine.WithLedger(led),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(rf.RunID)),
		engine.WithNow(ts.Now),
		engine.WithLogger(logger),
	}
	if rf.MaxScenarios > 0 {
		opts = append(opts, engine.WithGeneratorOptions(engine.WithMaxScenarios(rf.MaxScenarios)))
	}

	h := &Harness{
		store:  st,
		engine: engine.New(opts...),
		logger: logger,
	}
	return h.execute(ctx, rf)
}

func (h *Harness) execute(ctx context.Context, rf *RunFile) (*Result, error) {
	result := NewResult()

	if _, err := h.engine.LoadModel(rf.Model); err != nil {
		if rf.ExpectError == "" {
			return nil, fmt.Errorf("failed to load model: %w", err)
		}
		h.expectCode(result, "load", rf.ExpectError, err)
		return result, nil
	}

	strategy, err := engine.ParseStrategy(rf.Strategy)
	if err != nil {
		return nil, err
	}

	gen, err := h.engine.Generate(ctx, strategy)
	if rf.ExpectError != "" {
		h.expectCode(result, "generate", rf.ExpectError, err)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate: %w", err)
	}
	result.Generation = gen

	for i, step := range rf.Steps {
		err := h.executeStep(ctx, step)
		if step.ExpectError != "" || err != nil {
			h.expectCode(result, fmt.Sprintf("steps[%d]", i), step.ExpectError, err)
		}
	}

	if rf.Impacts != "" {
		if err := h.recordImpacts(ctx, rf.Impacts); err != nil {
			return nil, err
		}
	}

	if err := h.collectTrace(ctx, result); err != nil {
		return nil, err
	}

	report, err := h.engine.Report(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	result.Report = report

	for _, msg := range EvaluateAssertions(result, rf.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	status, err := ir.ParseStatus(step.Status)
	if err != nil {
		return ir.NewConfigurationError("%v", err)
	}

	if len(step.Trace) > 0 {
		ids, err := h.engine.RecordTrace(ctx, step.Trace, status, step.Reason, step.Source)
		h.logger.Info("trace recorded", "trace", step.Trace, "status", status, "scenarios", len(ids))
		return err
	}

	err = h.engine.Ledger().Record(ctx, ledger.Observation{
		ScenarioID: step.Record,
		Status:     status,
		Reason:     step.Reason,
		Source:     step.Source,
	})
	h.logger.Info("scenario recorded", "scenario", step.Record, "status", status)
	return err
}

// expectCode compares an outcome with an expected error code and records
// any mismatch.
func (h *Harness) expectCode(result *Result, where, want string, err error) {
	got := string(ir.CodeOf(err))
	if err != nil && got == "" {
		got = "error"
	}
	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", where, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", where, want))
	case want != got:
		result.AddError(fmt.Sprintf("%s: expected error %s, got %v", where, want, err))
	}
}

func (h *Harness) recordImpacts(ctx context.Context, path string) error {
	features, err := impact.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load impacts: %w", err)
	}
	recs, err := impact.Analyze(features)
	if err != nil {
		return fmt.Errorf("failed to classify impacts: %w", err)
	}
	for _, rec := range recs {
		if err := h.engine.RecordImpact(ctx, rec); err != nil {
			return fmt.Errorf("failed to record impact %q: %w", rec.FeatureID, err)
		}
	}
	return nil
}

// collectTrace reads every ledger event back from the store.
func (h *Harness) collectTrace(ctx context.Context, result *Result) error {
	entries, err := h.store.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	keys := make(map[string]string, len(entries))
	for _, e := range entries {
		keys[e.Scenario.ID] = e.Scenario.ContextKey
	}

	events, err := h.store.LoadEvents(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	for _, ev := range events {
		result.AddTrace(ev, keys[ev.ScenarioID])
	}
	return nil
}
