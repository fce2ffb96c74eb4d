package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"MarginSight/internal/analysis"
	"MarginSight/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// startStaleBatchReaper schedules the reaper on the given cron spec.
func startStaleBatchReaper(pool *pgxpool.Pool, schedule, timezone string) (*cron.Cron, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(schedule, func() {
		if err := ReapStaleBatches(context.Background(), pool); err != nil {
			log.Printf("[ERROR] stale batch reaper: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// ReapStaleBatches fails every batch stuck in processing beyond the
// batch wall-clock budget. Failed batches can be re-triggered; the next
// run replaces the detail snapshot.
func ReapStaleBatches(ctx context.Context, pool *pgxpool.Pool) error {
	cutoff := time.Now().Add(-config.BatchTimeout)
	tag, err := pool.Exec(ctx, `
		UPDATE analysis_batches
		SET status = $1, error_message = 'processing timed out; re-trigger the batch'
		WHERE status = $2 AND processing_started_at < $3`,
		analysis.StatusFailed, analysis.StatusProcessing, cutoff)
	if err != nil {
		return fmt.Errorf("failed to reap stale batches: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("[INFO] stale batch reaper: failed %d stuck batches", n)
	}
	return nil
}
