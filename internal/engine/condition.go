package engine

import (
	"github.com/agent-next/behavior-driven-testing/internal/compiler"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Evaluator answers whether partial assignments are logically possible
// under a model's closed guard rules. The closure is computed once, when
// the evaluator is built, and never changes afterwards.
//
// Thread-safety: Evaluator is read-only after construction and safe for
// concurrent use.
type Evaluator struct {
	model   *ir.Model
	closure *compiler.Closure
}

// NewEvaluator closes the model's guard rules. Guards that name undeclared
// dimensions or values are configuration errors.
func NewEvaluator(m *ir.Model) (*Evaluator, error) {
	c, err := compiler.CloseGuards(m)
	if err != nil {
		return nil, err
	}
	return &Evaluator{model: m, closure: c}, nil
}

// IsPossible reports whether a partial assignment (dimension -> value id)
// avoids every closed exclusion. Wildcards are always possible.
func (e *Evaluator) IsPossible(partial map[string]string) bool {
	refs := make([]ir.ValueRef, 0, len(partial))
	for dim, val := range partial {
		refs = append(refs, ir.ValueRef{Dimension: dim, Value: val})
	}
	for i := range refs {
		for j := i + 1; j < len(refs); j++ {
			if e.closure.Excludes(refs[i], refs[j]) {
				return false
			}
		}
	}
	return true
}

// Excludes reports whether two values may never share a scenario.
func (e *Evaluator) Excludes(a, b ir.ValueRef) bool {
	return e.closure.Excludes(a, b)
}

// Exclusions lists the closed exclusion pairs for diagnostics.
func (e *Evaluator) Exclusions() []string {
	return e.closure.Pairs()
}
