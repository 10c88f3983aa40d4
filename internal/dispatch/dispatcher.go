package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/renderer"
)

// Store is the slice of the job store the dispatcher needs.
type Store interface {
	ClaimBatch(ctx context.Context, limit int) ([]domain.Job, error)
	Complete(ctx context.Context, job domain.Job, result json.RawMessage) error
	FailOrRetry(ctx context.Context, job domain.Job, cause error) (domain.JobStatus, error)
	Discard(ctx context.Context, job domain.Job) error
	OrderCancelled(ctx context.Context, orderID string) (bool, error)
	AppendEvent(ctx context.Context, jobID string, level domain.EventLevel, message string)
}

// Ledger debits quota for completed jobs.
type Ledger interface {
	Debit(ctx context.Context, accountID, jobID string, kind domain.AssetKind, units int) error
}

// Dispatcher drains the queue one tick at a time: claim a small batch,
// execute sequentially, write back. It holds no state between ticks, so
// overlapping invocations are safe; claim exclusivity does the coordination.
type Dispatcher struct {
	store     Store
	ledger    Ledger
	renderers renderer.Registry
	logger    infra.Logger
	batchSize int
}

func New(store Store, ledger Ledger, renderers renderer.Registry, logger infra.Logger, batchSize int) *Dispatcher {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Dispatcher{store: store, ledger: ledger, renderers: renderers, logger: logger, batchSize: batchSize}
}

// Tick processes at most one batch and returns how many jobs it claimed.
// Claim failures are infrastructure errors and propagate so the invoking
// scheduler can retry the whole tick; per-job failures never do.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	jobs, err := d.store.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("dispatch tick: %w", err)
	}
	for _, job := range jobs {
		d.process(ctx, job)
	}
	return len(jobs), nil
}

func (d *Dispatcher) process(ctx context.Context, job domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("job_id", job.ID).Any("panic", r).Msg("dispatch: job panicked")
			d.writeFailure(ctx, job, fmt.Errorf("panic during execution: %v", r))
		}
	}()

	d.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Int("attempt", job.Attempts).Msg("dispatch: picked job")

	if cancelled, err := d.store.OrderCancelled(ctx, job.OrderID); err == nil && cancelled {
		d.discard(ctx, job)
		return
	}

	render, ok := d.renderers.For(job.Type)
	if !ok {
		d.writeFailure(ctx, job, domain.NonRetryable(fmt.Errorf("no renderer configured for type %q", job.Type)))
		return
	}

	result, err := render.Render(ctx, job)
	if err != nil {
		d.writeFailure(ctx, job, err)
		return
	}

	// The parent order may have been cancelled while we were rendering;
	// in-flight work is not interrupted but its result is discarded.
	if cancelled, err := d.store.OrderCancelled(ctx, job.OrderID); err == nil && cancelled {
		d.discard(ctx, job)
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		d.writeFailure(ctx, job, domain.NonRetryable(fmt.Errorf("encode result: %w", err)))
		return
	}
	if err := d.store.Complete(ctx, job, raw); err != nil {
		if errors.Is(err, domain.ErrStaleClaim) {
			// Reclaimed while we were rendering; the retry owns the job now.
			d.logger.Warn().Str("job_id", job.ID).Msg("dispatch: claim lost, result dropped")
			return
		}
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("dispatch: completion write failed")
		return
	}
	d.store.AppendEvent(ctx, job.ID, domain.EventLevelInfo, fmt.Sprintf("completed, asset %s", result.AssetURL))

	d.debit(ctx, job)
}

// debit charges the account for the completed job. The ledger write is
// idempotent per job id, so retrying here can never double-bill.
func (d *Dispatcher) debit(ctx context.Context, job domain.Job) {
	kind := domain.KindForJobType(job.Type)
	err := d.ledger.Debit(ctx, job.AccountID, job.ID, kind, job.CostUnits)
	if err != nil {
		err = d.ledger.Debit(ctx, job.AccountID, job.ID, kind, job.CostUnits)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("dispatch: quota debit failed")
		d.store.AppendEvent(ctx, job.ID, domain.EventLevelError, "quota debit failed, reconciliation sweep will settle it")
	}
}

func (d *Dispatcher) writeFailure(ctx context.Context, job domain.Job, cause error) {
	status, err := d.store.FailOrRetry(ctx, job, cause)
	if err != nil {
		if errors.Is(err, domain.ErrStaleClaim) {
			return
		}
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("dispatch: failure write failed")
		return
	}
	switch status {
	case domain.JobStatusQueued:
		d.logger.Warn().Err(cause).Str("job_id", job.ID).Int("attempt", job.Attempts).Msg("dispatch: job failed, requeued")
		d.store.AppendEvent(ctx, job.ID, domain.EventLevelWarn, fmt.Sprintf("attempt %d failed: %v", job.Attempts, cause))
	case domain.JobStatusFailed:
		d.logger.Error().Err(cause).Str("job_id", job.ID).Msg("dispatch: job failed terminally")
		d.store.AppendEvent(ctx, job.ID, domain.EventLevelError, fmt.Sprintf("failed: %v", cause))
	}
}

func (d *Dispatcher) discard(ctx context.Context, job domain.Job) {
	if err := d.store.Discard(ctx, job); err != nil && !errors.Is(err, domain.ErrStaleClaim) {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("dispatch: discard failed")
		return
	}
	d.store.AppendEvent(ctx, job.ID, domain.EventLevelWarn, "order cancelled, result discarded")
}
