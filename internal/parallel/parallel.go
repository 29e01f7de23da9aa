package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every item with at most workers calls in flight and
// returns the results in input order. The first error cancels the rest.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
