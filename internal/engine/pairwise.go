package engine

import (
	"context"
	"slices"
)

// coverItem is a value pair to cover, or a single value when j < 0.
// Singles make sure values with no legal partner still appear.
type coverItem struct {
	i, a int
	j, b int
}

func (c coverItem) coveredBy(t tuple) bool {
	if t[c.i] != c.a {
		return false
	}
	return c.j < 0 || t[c.j] == c.b
}

// coverItems lists every legal pair of concrete values from two distinct
// dimensions, plus every concrete value that has no legal pair at all, in
// canonical order.
func (s *space) coverItems() []coverItem {
	var items []coverItem
	paired := make([][]bool, s.dims())
	for i := range paired {
		paired[i] = make([]bool, len(s.concrete[i]))
	}

	for i := 0; i < s.dims(); i++ {
		for a := range s.concrete[i] {
			for j := i + 1; j < s.dims(); j++ {
				for b := range s.concrete[j] {
					if s.excl[i][a][j][b] {
						continue
					}
					items = append(items, coverItem{i: i, a: a, j: j, b: b})
					paired[i][a] = true
					paired[j][b] = true
				}
			}
		}
	}

	for i := range paired {
		for a, ok := range paired[i] {
			if !ok {
				items = append(items, coverItem{i: i, a: a, j: -1})
			}
		}
	}
	return items
}

// pairwise builds a covering set greedily. Each round seeds one candidate
// per value from the first uncovered item that starts with it, completes
// it, and keeps the candidate that covers the most uncovered items, ties
// going to the canonically smallest tuple. The result is covering but not
// necessarily minimal.
func (s *space) pairwise(ctx context.Context, q *QuotaEnforcer) ([]tuple, error) {
	if s.dims() == 0 {
		return nil, nil
	}
	if s.dims() == 1 {
		return s.exhaustive(ctx, q)
	}

	uncovered := s.coverItems()
	var chosen []tuple

	for len(uncovered) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			best      tuple
			bestScore = -1
		)
		seeded := make(map[[2]int]bool)
		for _, seed := range uncovered {
			if seeded[[2]int{seed.i, seed.a}] {
				continue
			}
			seeded[[2]int{seed.i, seed.a}] = true
			cand := s.complete(seed, uncovered)
			score := countCovered(cand, uncovered)
			if score > bestScore || (score == bestScore && s.less(cand, best)) {
				best, bestScore = cand, score
			}
		}

		if err := q.Check(); err != nil {
			return nil, err
		}
		chosen = append(chosen, best)
		uncovered = slices.DeleteFunc(uncovered, func(c coverItem) bool {
			return c.coveredBy(best)
		})
	}

	slices.SortFunc(chosen, s.compare)
	return chosen, nil
}

// complete fixes the seed's values and fills the remaining dimensions in
// declaration order. Each dimension takes the compatible value that covers
// the most uncovered items against what is already fixed, first declared
// on ties, or the wildcard when nothing fits.
func (s *space) complete(seed coverItem, uncovered []coverItem) tuple {
	t := make(tuple, s.dims())
	fixed := make([]bool, s.dims())
	for d := range t {
		t[d] = wild
	}
	t[seed.i], fixed[seed.i] = seed.a, true
	if seed.j >= 0 {
		t[seed.j], fixed[seed.j] = seed.b, true
	}

	for d := range t {
		if fixed[d] {
			continue
		}
		bestV, bestGain := wild, -1
		for v := range s.concrete[d] {
			if !s.compatibleFixed(t, fixed, d, v) {
				continue
			}
			gain := 0
			for _, c := range uncovered {
				if c.touches(d, v) && c.fitsFixed(t, fixed, d, v) {
					gain++
				}
			}
			if gain > bestGain {
				bestV, bestGain = v, gain
			}
		}
		t[d], fixed[d] = bestV, true
	}
	return t
}

// compatibleFixed is compatible restricted to fixed positions.
func (s *space) compatibleFixed(t tuple, fixed []bool, d, v int) bool {
	for j, w := range t {
		if j == d || !fixed[j] || w == wild {
			continue
		}
		if s.excl[d][v][j][w] {
			return false
		}
	}
	return true
}

func (c coverItem) touches(d, v int) bool {
	return (c.i == d && c.a == v) || (c.j == d && c.b == v)
}

// fitsFixed reports whether setting d=v would cover c given the fixed
// positions of t.
func (c coverItem) fitsFixed(t tuple, fixed []bool, d, v int) bool {
	at := func(dim int) (int, bool) {
		if dim == d {
			return v, true
		}
		return t[dim], fixed[dim]
	}
	va, ok := at(c.i)
	if !ok || va != c.a {
		return false
	}
	if c.j < 0 {
		return true
	}
	vb, ok := at(c.j)
	return ok && vb == c.b
}

func countCovered(t tuple, items []coverItem) int {
	n := 0
	for _, c := range items {
		if c.coveredBy(t) {
			n++
		}
	}
	return n
}
