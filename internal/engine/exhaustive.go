package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// exhaustive enumerates every legal tuple in canonical order.
//
// The cross product is split on the first dimension's domain and each
// slice is enumerated in its own goroutine. Slices are concatenated in
// domain order, so the result does not depend on scheduling.
func (s *space) exhaustive(ctx context.Context, q *QuotaEnforcer) ([]tuple, error) {
	if s.dims() == 0 {
		return nil, nil
	}

	first := s.domain(0)
	parts := make([][]tuple, len(first))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, v := range first {
		g.Go(func() error {
			t := make(tuple, 1, s.dims())
			t[0] = v
			var out []tuple
			if err := s.extend(ctx, q, t, &out); err != nil {
				return err
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []tuple
	for _, p := range parts {
		all = append(all, p...)
	}
	return all, nil
}

// extend appends every legal completion of prefix t to out, counting
// each against q.
func (s *space) extend(ctx context.Context, q *QuotaEnforcer, t tuple, out *[]tuple) error {
	d := len(t)
	if d == s.dims() {
		if !s.valid(t) {
			return nil
		}
		if err := q.Check(); err != nil {
			return err
		}
		*out = append(*out, append(tuple(nil), t...))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, v := range s.domain(d) {
		if v != wild && !s.compatible(t, d, v) {
			continue
		}
		if err := s.extend(ctx, q, append(t, v), out); err != nil {
			return err
		}
	}
	return nil
}
