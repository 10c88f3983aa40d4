package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/intent"
	"alfie/internal/sqlinline"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	backoffBase = 30 * time.Second
	backoffCap  = 15 * time.Minute
)

// Store is the durable job table and the single source of truth for pipeline
// state. Every state transition is a conditional update; the store never
// deletes a job.
type Store struct {
	sql    infra.SQLExecutor
	pool   *pgxpool.Pool
	logger infra.Logger
}

func NewStore(runner *infra.SQLRunner) *Store {
	return &Store{sql: runner, pool: runner.Pool, logger: runner.Logger}
}

// FindOrderByKey resolves a previously enqueued order by its idempotency key.
func (s *Store) FindOrderByKey(ctx context.Context, accountID, key string) (string, error) {
	if key == "" {
		return "", domain.ErrNotFound
	}
	row := s.sql.QueryRow(ctx, sqlinline.QSelectOrderByIdempotencyKey, accountID, key)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("find order by key: %w", err)
	}
	return id, nil
}

// EnqueueOrder inserts the order and all of its jobs in one transaction, so
// a failure never leaves a partial job set enqueued.
func (s *Store) EnqueueOrder(ctx context.Context, tr intent.Translation) error {
	insertOrder, err := infra.TrimMarker(sqlinline.QInsertOrder)
	if err != nil {
		return err
	}
	insertJob, err := infra.TrimMarker(sqlinline.QInsertJob)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertOrder, tr.OrderID, tr.AccountID, tr.Title, tr.IdempotencyKey); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, spec := range tr.Jobs {
		if _, err := tx.Exec(ctx, insertJob,
			spec.ID, tr.OrderID, tr.AccountID, string(spec.Type), []byte(spec.Payload),
			spec.MaxAttempts, spec.CostUnits, spec.IdempotencyKey,
			nil, spec.TimeoutSeconds,
		); err != nil {
			return fmt.Errorf("insert job %s: %w", spec.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	s.logger.Info().Str("order_id", tr.OrderID).Int("jobs", len(tr.Jobs)).Msg("queue: order enqueued")
	return nil
}

// ClaimBatch claims up to limit runnable jobs for exclusive processing.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.sql.Query(ctx, sqlinline.QClaimJobs, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var j domain.Job
		var claimedAt time.Time
		if err := rows.Scan(&j.ID, &j.OrderID, &j.AccountID, &j.Type, &j.Payload,
			&j.Attempts, &j.MaxAttempts, &j.CostUnits, &claimedAt); err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		j.Status = domain.JobStatusRunning
		j.ClaimedAt = &claimedAt
		j.Payload = append(json.RawMessage(nil), j.Payload...)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Complete marks a claimed job completed. The write is conditional on the
// caller's claim timestamp; a reclaimed job makes this a no-op and
// ErrStaleClaim is returned so the caller can drop the result.
func (s *Store) Complete(ctx context.Context, job domain.Job, result json.RawMessage) error {
	if job.ClaimedAt == nil {
		return domain.ErrStaleClaim
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QCompleteJob, job.ID, *job.ClaimedAt, []byte(result))
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleClaim
	}
	return nil
}

// FailOrRetry records a failed execution. While the retry budget lasts the
// job returns to queued with exponential backoff; otherwise it fails
// terminally. Returns the resulting status.
func (s *Store) FailOrRetry(ctx context.Context, job domain.Job, cause error) (domain.JobStatus, error) {
	if job.ClaimedAt == nil {
		return "", domain.ErrStaleClaim
	}
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	delay := int(RetryBackoff(job.Attempts).Seconds())
	terminal := domain.IsNonRetryable(cause)
	row := s.sql.QueryRow(ctx, sqlinline.QFailJob, job.ID, *job.ClaimedAt, delay, msg, terminal)
	var status string
	if err := row.Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrStaleClaim
		}
		return "", fmt.Errorf("fail job: %w", err)
	}
	return domain.JobStatus(status), nil
}

// Discard cancels a running job whose order was cancelled mid-flight. Like
// Complete it is conditional on the claim, so it cannot clobber a reclaimed
// and re-queued job.
func (s *Store) Discard(ctx context.Context, job domain.Job) error {
	if job.ClaimedAt == nil {
		return domain.ErrStaleClaim
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QDiscardJob, job.ID, *job.ClaimedAt)
	if err != nil {
		return fmt.Errorf("discard job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleClaim
	}
	return nil
}

// OrderCancelled reports whether the job's parent order has been cancelled.
func (s *Store) OrderCancelled(ctx context.Context, orderID string) (bool, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectOrderCancelled, orderID)
	var cancelled bool
	if err := row.Scan(&cancelled); err != nil {
		if infra.IsNoRows(err) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("read order: %w", err)
	}
	return cancelled, nil
}

// GetOrder loads an order with its child jobs. The aggregate status is
// derived by the caller via domain.Order.Status, never read from storage.
func (s *Store) GetOrder(ctx context.Context, orderID, accountID string) (domain.Order, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectOrder, orderID, accountID)
	var o domain.Order
	if err := row.Scan(&o.ID, &o.AccountID, &o.Title, &o.IdempotencyKey, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("read order: %w", err)
	}

	rows, err := s.sql.Query(ctx, sqlinline.QSelectOrderJobs, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("read order jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.OrderID, &j.AccountID, &j.Type, &j.Status, &j.Payload, &j.Result,
			&j.ErrorMessage, &j.Attempts, &j.MaxAttempts, &j.CostUnits,
			&j.ScheduledFor, &j.ClaimedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return domain.Order{}, fmt.Errorf("scan order job: %w", err)
		}
		o.Jobs = append(o.Jobs, j)
	}
	return o, rows.Err()
}

// CancelOrder cancels an order and its not-yet-started jobs, returning how
// many queued jobs were cancelled. Running jobs keep running; their results
// are discarded by the dispatcher when it notices the cancellation.
func (s *Store) CancelOrder(ctx context.Context, orderID, accountID string) (int, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QCancelOrder, orderID, accountID)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("cancel order: %w", err)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QCancelOrderJobs, orderID)
	if err != nil {
		return 0, fmt.Errorf("cancel order jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// AppendEvent records one audit entry for the job and fires the change
// notification observers may be listening on. Event failures are logged,
// not propagated; the audit trail is diagnostic, never load-bearing.
func (s *Store) AppendEvent(ctx context.Context, jobID string, level domain.EventLevel, message string) {
	if _, err := s.sql.Exec(ctx, sqlinline.QInsertJobEvent, jobID, string(level), message); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("queue: append event failed")
		return
	}
	payload, _ := json.Marshal(map[string]string{"job_id": jobID, "message": message})
	if _, err := s.sql.Exec(ctx, sqlinline.QNotifyJobEvent, string(payload)); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("queue: notify failed")
	}
}

// RecentEvents returns the newest audit entries, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]domain.JobEvent, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectRecentJobEvents, limit)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()
	var events []domain.JobEvent
	for rows.Next() {
		var e domain.JobEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RetryBackoff returns the delay before a job's next attempt: 30s doubling
// per attempt, capped at 15 minutes.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := backoffBase << (attempts - 1)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}
