package engine

import (
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// nominals returns the nominal concrete index of every dimension, or wild
// for dimensions without concrete values.
func (g *Generator) nominals() []int {
	out := make([]int, g.space.dims())
	for d, dim := range g.model.Dimensions {
		out[d] = wild
		nom, ok := dim.NominalValue()
		if !ok {
			continue
		}
		for v, cv := range g.space.concrete[d] {
			if cv.ID == nom.ID {
				out[d] = v
			}
		}
	}
	return out
}

// nearest builds the possible path closest to nominal once dimension
// fixed holds value v (fixed < 0 pins nothing). Every other dimension, in
// declaration order, keeps its nominal value if that fits what is already
// placed, else takes its first value that fits, else collapses to the
// wildcard.
func (g *Generator) nearest(nominal []int, fixed, v int) tuple {
	t := make(tuple, len(nominal))
	for d := range t {
		t[d] = wild
	}
	if fixed >= 0 {
		t[fixed] = v
	}
	for d := range t {
		if d == fixed {
			continue
		}
		if nominal[d] != wild && g.space.compatible(t, d, nominal[d]) {
			t[d] = nominal[d]
			continue
		}
		for c := range g.space.concrete[d] {
			if g.space.compatible(t, d, c) {
				t[d] = c
				break
			}
		}
	}
	return t
}

// differing lists the concrete positions of t that differ from ref.
func differing(t, ref tuple) []int {
	var out []int
	for d, v := range t {
		if v != wild && v != ref[d] {
			out = append(out, d)
		}
	}
	return out
}

// deviation finds the single dimension on which t leaves the nominal path.
// It returns -1 for the happy path itself and ok=false when t deviates on
// more than one dimension. When nominal values exclude each other the
// path is taken as nearest(nominal, -1, 0), and a deviation on d as
// nearest with d pinned.
func (g *Generator) deviation(t tuple, nominal []int, happy tuple) (int, bool) {
	devs := differing(t, nominal)
	switch {
	case len(devs) == 0:
		return -1, true
	case len(devs) == 1:
		return devs[0], true
	case len(differing(t, happy)) == 0:
		return -1, true
	}
	for _, d := range devs {
		if len(differing(t, g.nearest(nominal, d, t[d]))) == 0 {
			return d, true
		}
	}
	return 0, false
}

// bucket classifies an exhaustive tuple. Wildcard positions count as
// nominal.
//
//	P0: the nominal path, or one dimension on its failure side
//	P1: selected by the critical predicate
//	P2: one dimension on a non-nominal boundary value
//
// Anything else is omitted.
func (g *Generator) bucket(t tuple, sc ir.Scenario, nominal []int, happy tuple) (ir.Tier, bool) {
	d, single := g.deviation(t, nominal, happy)

	if single && (d < 0 || g.isFailure(d, t[d])) {
		return ir.P0, true
	}
	if g.critical != nil && g.critical(sc) {
		return ir.P1, true
	}
	if single && g.space.concrete[d][t[d]].Kind == ir.KindBoundary {
		return ir.P2, true
	}
	return "", false
}

// isFailure reports whether value v is a failure side of dimension d.
// Dimensions that flag no failure values treat every non-nominal
// equivalence class as one.
func (g *Generator) isFailure(d, v int) bool {
	vals := g.space.concrete[d]
	flagged := false
	for _, cv := range vals {
		if cv.Failure {
			flagged = true
			break
		}
	}
	if flagged {
		return vals[v].Failure
	}
	return vals[v].Kind == ir.KindEquivalence
}
