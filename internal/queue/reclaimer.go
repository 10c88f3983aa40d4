package queue

import (
	"context"
	"fmt"
	"time"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/sqlinline"
)

// Reclaimer bounds the lifetime of the running state. It periodically sweeps
// jobs whose claim is older than their per-type timeout and either requeues
// them or fails them once the retry budget is spent. It is the safety net
// for worker crashes, renderer hangs and network partitions.
type Reclaimer struct {
	store    *Store
	logger   infra.Logger
	interval time.Duration
}

func NewReclaimer(store *Store, logger infra.Logger, interval time.Duration) *Reclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reclaimer{store: store, logger: logger, interval: interval}
}

// Run sweeps on a fixed interval until ctx is done. Overlapping sweeps from
// another process are safe: the reclaim update is a single conditional
// statement per job.
func (r *Reclaimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			requeued, failed, err := r.Sweep(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("reclaimer: sweep failed")
				continue
			}
			if requeued+failed > 0 {
				r.logger.Info().Int("requeued", requeued).Int("failed", failed).Msg("reclaimer: recovered stuck jobs")
			}
		}
	}
}

// Sweep performs one pass over stuck running jobs.
func (r *Reclaimer) Sweep(ctx context.Context) (requeued, failed int, err error) {
	rows, err := r.store.sql.Query(ctx, sqlinline.QReclaimStuckJobs)
	if err != nil {
		return 0, 0, fmt.Errorf("reclaim stuck jobs: %w", err)
	}
	defer rows.Close()

	type swept struct {
		id       string
		status   domain.JobStatus
		attempts int
	}
	var results []swept
	for rows.Next() {
		var s swept
		if err := rows.Scan(&s.id, &s.status, &s.attempts); err != nil {
			return requeued, failed, fmt.Errorf("scan reclaimed job: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return requeued, failed, err
	}

	for _, s := range results {
		switch s.status {
		case domain.JobStatusQueued:
			requeued++
			r.store.AppendEvent(ctx, s.id, domain.EventLevelWarn,
				fmt.Sprintf("stuck in running, requeued (attempt %d)", s.attempts))
		case domain.JobStatusFailed:
			failed++
			r.store.AppendEvent(ctx, s.id, domain.EventLevelError,
				"stuck in running with retries exhausted, failed")
		}
	}
	return requeued, failed, nil
}
