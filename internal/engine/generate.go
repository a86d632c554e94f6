package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/agent-next/behavior-driven-testing/internal/compiler"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Strategy selects how scenarios are drawn from the cross product.
type Strategy string

const (
	StrategyExhaustive       Strategy = "exhaustive"
	StrategyPairwise         Strategy = "pairwise"
	StrategyPriorityBucketed Strategy = "priority-bucketed"
)

// Strategies lists every strategy name.
var Strategies = []Strategy{StrategyExhaustive, StrategyPairwise, StrategyPriorityBucketed}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyExhaustive, StrategyPairwise, StrategyPriorityBucketed:
		return Strategy(s), nil
	default:
		return "", ir.NewConfigurationError("unknown strategy %q: must be one of exhaustive, pairwise, priority-bucketed", s)
	}
}

// ReasonBelowThreshold is recorded for every combination a
// priority-bucketed run leaves out.
const ReasonBelowThreshold = "below-priority-threshold"

// Omission is a combination deliberately left out of a run.
type Omission struct {
	Scenario ir.Scenario `json:"scenario"`
	Reason   string      `json:"reason"`
}

// Result is the output of one generation.
type Result struct {
	RunID     string        `json:"run_id,omitempty"` // set once registered in a ledger
	Strategy  Strategy      `json:"strategy"`
	Scenarios []ir.Scenario `json:"scenarios"`
	Omitted   []Omission    `json:"omitted,omitempty"`
}

// Predicate selects business-critical scenarios for the P1 bucket.
type Predicate func(ir.Scenario) bool

// CriticalSelectors builds a predicate that accepts scenarios satisfying
// any of the selectors.
func CriticalSelectors(sels []ir.Selector) Predicate {
	return func(sc ir.Scenario) bool {
		for _, sel := range sels {
			if sc.Satisfies(sel) {
				return true
			}
		}
		return false
	}
}

// Generator draws scenarios from one model.
//
// Thread-safety: a Generator is read-only after construction; Generate may
// be called concurrently.
type Generator struct {
	model    *ir.Model
	eval     *Evaluator
	space    *space
	critical Predicate
	maxScen  int
	logger   *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithCriticalPredicate replaces the model's critical selectors as the P1
// criterion of priority-bucketed runs.
func WithCriticalPredicate(p Predicate) GeneratorOption {
	return func(g *Generator) {
		g.critical = p
	}
}

// WithMaxScenarios sets the scenario quota of each Generate call.
//
// Default: DefaultMaxScenarios. Zero or less disables the quota.
func WithMaxScenarios(n int) GeneratorOption {
	return func(g *Generator) {
		g.maxScen = n
	}
}

// WithGeneratorLogger sets the logger. Defaults to slog.Default().
func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator validates the model and closes its guard rules.
func NewGenerator(m *ir.Model, opts ...GeneratorOption) (*Generator, error) {
	if err := compiler.ValidateModel(m); err != nil {
		return nil, err
	}
	eval, err := NewEvaluator(m)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		model:    m,
		eval:     eval,
		space:    newSpace(m, eval),
		critical: CriticalSelectors(m.Critical),
		maxScen:  DefaultMaxScenarios,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluator returns the generator's condition evaluator.
func (g *Generator) Evaluator() *Evaluator {
	return g.eval
}

// Generate produces the scenario set for a strategy. Output order is
// canonical: lexicographic over dimension declaration order, then value
// declaration order, with wildcards last. A non-optional dimension without
// values fails the whole call; an optional one yields an empty result.
func (g *Generator) Generate(ctx context.Context, strategy Strategy) (*Result, error) {
	res := &Result{Strategy: strategy, Scenarios: []ir.Scenario{}}

	for _, d := range g.model.Dimensions {
		if len(d.Values) == 0 && !d.Optional {
			return nil, ir.NewEmptyDimensionError(d.ID)
		}
	}
	for _, d := range g.model.Dimensions {
		if len(d.Values) == 0 {
			g.logger.Debug("optional dimension is empty, no scenarios", "dimension", d.ID)
			return res, nil
		}
	}

	var (
		tuples []tuple
		err    error
		quota  = NewQuotaEnforcer(g.maxScen)
	)
	switch strategy {
	case StrategyExhaustive, StrategyPriorityBucketed:
		tuples, err = g.space.exhaustive(ctx, quota)
	case StrategyPairwise:
		tuples, err = g.space.pairwise(ctx, quota)
	default:
		return nil, ir.NewConfigurationError("unknown strategy %q", strategy)
	}
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		qe.Strategy = strategy
		g.logger.Warn("scenario quota exceeded",
			"model", g.model.Name,
			"strategy", strategy,
			"limit", qe.Limit)
		return nil, &ir.EngineError{
			Code:    ir.ErrCodeConfiguration,
			Message: "model produces too many scenarios",
			Details: map[string]string{"limit": strconv.Itoa(qe.Limit), "strategy": string(strategy)},
			Err:     qe,
		}
	}
	if err != nil {
		return nil, err
	}

	nominal := g.nominals()
	happy := g.nearest(nominal, -1, 0)
	for _, t := range tuples {
		sc, err := g.scenario(t)
		if err != nil {
			return nil, err
		}
		if strategy == StrategyPriorityBucketed {
			bucket, ok := g.bucket(t, sc, nominal, happy)
			if !ok {
				sc.Priority = Assign(sc, sc.Factors)
				res.Omitted = append(res.Omitted, Omission{Scenario: sc, Reason: ReasonBelowThreshold})
				continue
			}
			sc.Bucket = bucket
		}
		sc.Priority = Assign(sc, sc.Factors)
		res.Scenarios = append(res.Scenarios, sc)
	}

	g.logger.Debug("generated scenarios",
		"model", g.model.Name,
		"strategy", strategy,
		"scenarios", len(res.Scenarios),
		"omitted", len(res.Omitted))
	return res, nil
}

func (g *Generator) scenario(t tuple) (ir.Scenario, error) {
	sc, err := ir.NewScenario(g.space.assignment(t))
	if err != nil {
		return ir.Scenario{}, fmt.Errorf("build scenario: %w", err)
	}
	sc.Factors = scenarioFactors(g.space.values(t))
	sc.Branches = branchOutcomes(sc, g.model.Branches)
	return sc, nil
}
