package engine

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the background sweeper reclaims
// expired reservation locks.
const DefaultSweepInterval = time.Minute

// SweepExpiredLocks deletes every hold past its expiry and returns how
// many were removed.  It is idempotent and best-effort: capacity
// accounting never depends on it because availability checks are
// time-based, the sweeper only keeps the table small.
func (e *Engine) SweepExpiredLocks(ctx context.Context) (int64, error) {
	var removed int64
	err := e.store.InTx(ctx, func(tx Tx) error {
		n, err := tx.DeleteExpiredLocks(ctx, e.now())
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// RunSweeper loops until the context is cancelled, sweeping on the
// given interval.  A hold a booking transaction is concurrently
// consuming is either already deleted (the transaction won) or still
// valid (the next cycle gets it), so no coordination beyond row-level
// serialization is needed.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.SweepExpiredLocks(ctx)
			if err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: removed %d expired holds", n)
			}
		}
	}
}
