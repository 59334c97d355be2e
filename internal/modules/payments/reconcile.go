// README: Transfer retry queue on Redis; failed payouts are reconciled, never retried inline.
package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"freightly/internal/types"
)

const retryKey = "transfers:retry"

// RetryQueue is a ZSET scored by the unix time of the next attempt.
type RetryQueue struct {
	rdb *redis.Client
}

func NewRetryQueue(rdb *redis.Client) *RetryQueue {
	return &RetryQueue{rdb: rdb}
}

func (q *RetryQueue) Enqueue(ctx context.Context, bookingID types.ID, at time.Time) error {
	return q.rdb.ZAdd(ctx, retryKey, redis.Z{Score: float64(at.Unix()), Member: string(bookingID)}).Err()
}

// Due pops up to batch booking ids whose retry time has passed.
func (q *RetryQueue) Due(ctx context.Context, now time.Time, batch int64) ([]types.ID, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, retryKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.Unix()), Offset: 0, Count: batch,
	}).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, retryKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	out := make([]types.ID, len(ids))
	for i, id := range ids {
		out[i] = types.ID(id)
	}
	return out, nil
}

// Reconciler drains the retry queue on a ticker and re-attempts payouts for
// bookings still stuck in transfer_pending.
type Reconciler struct {
	payouts *Payouts
	queue   *RetryQueue
	tick    time.Duration
	batch   int64
	log     *zap.Logger
}

func NewReconciler(payouts *Payouts, queue *RetryQueue, tick time.Duration, batch int64, log *zap.Logger) *Reconciler {
	return &Reconciler{payouts: payouts, queue: queue, tick: tick, batch: batch, log: log}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := r.queue.Due(ctx, time.Now(), r.batch)
			if err != nil {
				r.log.Warn("reconciler: fetch due transfers", zap.Error(err))
				continue
			}
			for _, id := range ids {
				if err := r.payouts.Retry(ctx, id); err != nil {
					r.log.Warn("reconciler: retry payout", zap.String("booking_id", string(id)), zap.Error(err))
				}
			}
		}
	}
}
