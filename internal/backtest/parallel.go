package backtest

import (
	"context"
	"sync"
	"sync/atomic"
)

// precompute resolves the allocations for the given row indexes across a
// worker pool. Each worker writes to its own result slot, so the replay
// that follows consumes them in date order and the run is identical to a
// sequential one.
func (b *Backtest) precompute(ctx context.Context, indexes []int) (map[int]*allocation, error) {
	workers := b.cfg.Workers
	if workers > len(indexes) {
		workers = len(indexes)
	}
	b.log.Info("precomputing allocations", "workers", workers, "rebalances", len(indexes))

	results := make([]*allocation, len(indexes))
	slotCh := make(chan int)
	var wg sync.WaitGroup
	var done atomic.Int64

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slot := range slotCh {
				if ctx.Err() != nil {
					continue
				}
				results[slot] = b.allocate(ctx, indexes[slot])
				done.Add(1)
			}
		}()
	}

	for slot := range indexes {
		select {
		case slotCh <- slot:
		case <-ctx.Done():
			close(slotCh)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(slotCh)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.log.Debug("allocations ready", "count", done.Load())
	out := make(map[int]*allocation, len(indexes))
	for slot, idx := range indexes {
		out[idx] = results[slot]
	}
	return out, nil
}
