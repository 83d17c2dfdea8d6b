package resolver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// defaultBatchConcurrency bounds how many mentions ResolvePending resolves
// at once, keeping an I/O-bound batch off a single mention's critical path
// without unbounded fan-out against the database.
const defaultBatchConcurrency = 8

// BatchResult summarizes one ResolvePending run.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

// ResolvePending drains up to limit PENDING mentions, resolving each
// independently: one mention's failure is isolated (it remains PENDING,
// with a failure audit entry already written by ResolveMention) and must
// not roll back or abort its siblings.
func (r *Resolver) ResolvePending(ctx context.Context, limit int) (BatchResult, error) {
	mentions, err := r.db.ListPendingMentions(ctx, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("resolver: list pending mentions: %w", err)
	}

	result := BatchResult{Attempted: len(mentions)}
	if len(mentions) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultBatchConcurrency)

	for _, m := range mentions {
		mention := m
		g.Go(func() error {
			_, rerr := r.ResolveMention(gctx, mention.ID)
			mu.Lock()
			if rerr != nil {
				result.Failed++
			} else {
				result.Succeeded++
			}
			mu.Unlock()
			// A per-mention failure is isolated, not propagated: returning
			// nil here keeps the errgroup (and therefore its siblings)
			// running regardless of this mention's outcome.
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}
