package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Closure is the closed exclusion relation of a model's guard rules.
//
// Declared guards are edges between values. The closure adds the reverse
// of every edge and everything reachable through chains of edges, so two
// values exclude each other exactly when they share a connected component
// of the exclusion graph and sit on different dimensions. Wildcard values
// never take part.
type Closure struct {
	component map[ir.ValueRef]int
	groups    [][]ir.ValueRef
}

// exclusionGraph maps a value to the values it directly excludes, in
// both directions.
type exclusionGraph map[ir.ValueRef][]ir.ValueRef

// CloseGuards computes the exclusion closure for a model. Every guard must
// reference declared dimensions and values; otherwise a configuration
// error is returned.
func CloseGuards(m *ir.Model) (*Closure, error) {
	graph := make(exclusionGraph)

	for _, g := range m.Guards {
		src := g.Source()
		if err := checkRef(m, src); err != nil {
			return nil, ir.NewConfigurationError("guard %s: %v", src, err)
		}
		if isWildcardRef(m, src) {
			continue
		}
		for _, ex := range g.Excludes {
			if err := checkRef(m, ex); err != nil {
				return nil, ir.NewConfigurationError("guard %s excludes %s: %v", src, ex, err)
			}
			if isWildcardRef(m, ex) || ex == src {
				continue
			}
			graph[src] = append(graph[src], ex)
			graph[ex] = append(graph[ex], src)
		}
	}

	c := &Closure{component: make(map[ir.ValueRef]int)}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) < 2 {
			continue
		}
		sortRefs(m, scc)
		idx := len(c.groups)
		c.groups = append(c.groups, scc)
		for _, ref := range scc {
			c.component[ref] = idx
		}
	}
	return c, nil
}

// Excludes reports whether a and b may never appear in the same scenario.
func (c *Closure) Excludes(a, b ir.ValueRef) bool {
	if a.Dimension == b.Dimension || a.Value == ir.Wildcard || b.Value == ir.Wildcard {
		return false
	}
	ca, okA := c.component[a]
	cb, okB := c.component[b]
	return okA && okB && ca == cb
}

// Pairs lists every closed exclusion as "a excludes b" strings, a before b
// in declaration order. Used for diagnostics and tests.
func (c *Closure) Pairs() []string {
	var out []string
	for _, group := range c.groups {
		for i, a := range group {
			for _, b := range group[i+1:] {
				if a.Dimension == b.Dimension {
					continue
				}
				out = append(out, fmt.Sprintf("%s excludes %s", a, b))
			}
		}
	}
	return out
}

func checkRef(m *ir.Model, ref ir.ValueRef) error {
	dim, ok := m.Dimension(ref.Dimension)
	if !ok {
		return fmt.Errorf("unknown dimension %q", ref.Dimension)
	}
	if _, ok := dim.Value(ref.Value); !ok {
		return fmt.Errorf("unknown value %q in dimension %q", ref.Value, ref.Dimension)
	}
	return nil
}

func isWildcardRef(m *ir.Model, ref ir.ValueRef) bool {
	if ref.Value == ir.Wildcard {
		return true
	}
	dim, _ := m.Dimension(ref.Dimension)
	v, _ := dim.Value(ref.Value)
	return v.IsWildcard()
}

// sortRefs orders refs by dimension then value declaration index.
func sortRefs(m *ir.Model, refs []ir.ValueRef) {
	valueIndex := func(ref ir.ValueRef) int {
		dim, _ := m.Dimension(ref.Dimension)
		return slices.IndexFunc(dim.Values, func(v ir.Value) bool { return v.ID == ref.Value })
	}
	slices.SortFunc(refs, func(a, b ir.ValueRef) int {
		if d := m.DimensionIndex(a.Dimension) - m.DimensionIndex(b.Dimension); d != 0 {
			return d
		}
		return valueIndex(a) - valueIndex(b)
	})
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so component membership lists are
// reproducible.
func tarjanSCC(graph exclusionGraph) [][]ir.ValueRef {
	var (
		index   = 0
		stack   []ir.ValueRef
		indices = make(map[ir.ValueRef]int)
		lowlink = make(map[ir.ValueRef]int)
		onStack = make(map[ir.ValueRef]bool)
		sccs    [][]ir.ValueRef
	)

	var strongConnect func(ir.ValueRef)
	strongConnect = func(v ir.ValueRef) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []ir.ValueRef
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]ir.ValueRef, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.SortFunc(nodes, func(a, b ir.ValueRef) int {
		return strings.Compare(a.String(), b.String())
	})

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}
