package engine

import (
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// wild marks a wildcard position in a tuple.
const wild = -1

// tuple holds one value index per dimension: an index into that
// dimension's concrete values, or wild.
type tuple []int

// space is the index form of a model used by the generators. Excluded
// pairs are precomputed so inner loops never touch the closure maps.
type space struct {
	model    *ir.Model
	concrete [][]ir.Value
	// excl[i][a][j][b] reports whether value a of dimension i excludes
	// value b of dimension j.
	excl [][][][]bool
	doms [][]int
}

func newSpace(m *ir.Model, eval *Evaluator) *space {
	s := &space{model: m, concrete: make([][]ir.Value, len(m.Dimensions))}
	for i, d := range m.Dimensions {
		s.concrete[i] = d.Concrete()
	}

	s.excl = make([][][][]bool, len(m.Dimensions))
	for i := range m.Dimensions {
		s.excl[i] = make([][][]bool, len(s.concrete[i]))
		for a, va := range s.concrete[i] {
			s.excl[i][a] = make([][]bool, len(m.Dimensions))
			refA := ir.ValueRef{Dimension: m.Dimensions[i].ID, Value: va.ID}
			for j := range m.Dimensions {
				s.excl[i][a][j] = make([]bool, len(s.concrete[j]))
				if i == j {
					continue
				}
				for b, vb := range s.concrete[j] {
					refB := ir.ValueRef{Dimension: m.Dimensions[j].ID, Value: vb.ID}
					s.excl[i][a][j][b] = eval.Excludes(refA, refB)
				}
			}
		}
	}
	s.doms = make([][]int, len(m.Dimensions))
	for d := range m.Dimensions {
		s.doms[d] = s.buildDomain(d)
	}
	return s
}

func (s *space) dims() int { return len(s.concrete) }

// compatible reports whether value v of dimension d fits every concrete
// position of t except d itself. Positions beyond len(t) are ignored.
func (s *space) compatible(t tuple, d, v int) bool {
	for j, w := range t {
		if j == d || w == wild {
			continue
		}
		if s.excl[d][v][j][w] {
			return false
		}
	}
	return true
}

// anyCompatible reports whether some concrete value of d fits t.
func (s *space) anyCompatible(t tuple, d int) bool {
	for v := range s.concrete[d] {
		if s.compatible(t, d, v) {
			return true
		}
	}
	return false
}

// valid reports whether a complete tuple is a legal scenario: concrete
// values are pairwise compatible, and a wildcard stands only where no
// concrete value of that dimension could appear.
func (s *space) valid(t tuple) bool {
	for d, v := range t {
		if v == wild {
			if s.anyCompatible(t, d) {
				return false
			}
			continue
		}
		if !s.compatible(t, d, v) {
			return false
		}
	}
	return true
}

// collapsible reports whether a wildcard can ever be legal in dimension d:
// it has no concrete values, or one of them takes part in an exclusion.
func (s *space) collapsible(d int) bool {
	if len(s.concrete[d]) == 0 {
		return true
	}
	for a := range s.concrete[d] {
		for j := range s.excl[d][a] {
			for _, x := range s.excl[d][a][j] {
				if x {
					return true
				}
			}
		}
	}
	return false
}

// domain lists the candidate positions for dimension d in canonical order:
// concrete values in declaration order, then the wildcard when collapsible.
func (s *space) domain(d int) []int {
	return s.doms[d]
}

func (s *space) buildDomain(d int) []int {
	out := make([]int, 0, len(s.concrete[d])+1)
	for v := range s.concrete[d] {
		out = append(out, v)
	}
	if s.collapsible(d) {
		out = append(out, wild)
	}
	return out
}

// less orders tuples lexicographically by dimension declaration order then
// value declaration order, with the wildcard after every concrete value.
func (s *space) less(a, b tuple) bool {
	return s.compare(a, b) < 0
}

func (s *space) compare(a, b tuple) int {
	for d := range a {
		ra, rb := s.rank(d, a[d]), s.rank(d, b[d])
		if ra != rb {
			return ra - rb
		}
	}
	return 0
}

func (s *space) rank(d, v int) int {
	if v == wild {
		return len(s.concrete[d])
	}
	return v
}

// assignment renders a tuple in dimension declaration order.
func (s *space) assignment(t tuple) []ir.Assignment {
	out := make([]ir.Assignment, len(t))
	for d, v := range t {
		out[d] = ir.Assignment{Dimension: s.model.Dimensions[d].ID, Value: ir.Wildcard}
		if v != wild {
			out[d].Value = s.concrete[d][v].ID
		}
	}
	return out
}

// values returns the model values a tuple assigns; wildcard positions
// resolve to the dimension's wildcard value.
func (s *space) values(t tuple) []ir.Value {
	out := make([]ir.Value, len(t))
	for d, v := range t {
		if v == wild {
			out[d] = s.model.Dimensions[d].WildcardValue()
			continue
		}
		out[d] = s.concrete[d][v]
	}
	return out
}
