package queue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfie/internal/domain"
)

type stubRows struct {
	rows [][]any
	idx  int
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(row[i]).Convert(target.Type()))
	}
	return nil
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// queueDB scripts Exec tags and QueryRow/Query results, recording everything
// it was asked to run.
type queueDB struct {
	execTag  pgconn.CommandTag
	execErr  error
	row      stubRow
	rows     *stubRows
	queries  []string
	lastArgs []any
}

func (db *queueDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	db.queries = append(db.queries, query)
	db.lastArgs = args
	return db.execTag, db.execErr
}

func (db *queueDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	db.queries = append(db.queries, query)
	db.lastArgs = args
	return db.row
}

func (db *queueDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	db.queries = append(db.queries, query)
	db.lastArgs = args
	if db.rows == nil {
		return &stubRows{}, nil
	}
	return db.rows, nil
}

func newTestStore(db *queueDB) *Store {
	return &Store{sql: db, logger: zerolog.Nop()}
}

func claimedJob() domain.Job {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.Job{
		ID:        "job-1",
		OrderID:   "order-1",
		AccountID: "acct-1",
		Type:      domain.JobTypeRenderImage,
		Status:    domain.JobStatusRunning,
		Attempts:  1,
		ClaimedAt: &at,
	}
}

func TestClaimBatchScansJobs(t *testing.T) {
	now := time.Now().UTC()
	db := &queueDB{rows: &stubRows{rows: [][]any{
		{"job-1", "order-1", "acct-1", "render_image", []byte(`{"prompt":"x"}`), int(1), int(3), int(1), now},
		{"job-2", "order-1", "acct-1", "render_video", []byte(`{}`), int(2), int(2), int(10), now},
	}}}
	store := newTestStore(db)

	jobs, err := store.ClaimBatch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobStatusRunning, jobs[0].Status)
	assert.Equal(t, 1, jobs[0].Attempts)
	require.NotNil(t, jobs[0].ClaimedAt)
	assert.Equal(t, domain.JobTypeRenderVideo, jobs[1].Type)
	assert.Equal(t, []any{5}, db.lastArgs)
}

func TestCompleteStaleClaim(t *testing.T) {
	db := &queueDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
	store := newTestStore(db)

	err := store.Complete(context.Background(), claimedJob(), []byte(`{"asset_url":"u"}`))
	assert.ErrorIs(t, err, domain.ErrStaleClaim)
}

func TestCompleteWithoutClaimTimestamp(t *testing.T) {
	store := newTestStore(&queueDB{})
	job := claimedJob()
	job.ClaimedAt = nil
	assert.ErrorIs(t, store.Complete(context.Background(), job, nil), domain.ErrStaleClaim)
}

func TestCompleteLands(t *testing.T) {
	db := &queueDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	store := newTestStore(db)
	require.NoError(t, store.Complete(context.Background(), claimedJob(), []byte(`{}`)))
}

func TestFailOrRetryRequeues(t *testing.T) {
	db := &queueDB{row: stubRow{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "queued"
		return nil
	}}}
	store := newTestStore(db)

	status, err := store.FailOrRetry(context.Background(), claimedJob(), errors.New("render timeout"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, status)
	// args: id, claimed_at, delay, message, terminal
	require.Len(t, db.lastArgs, 5)
	assert.Equal(t, 30, db.lastArgs[2])
	assert.Equal(t, "render timeout", db.lastArgs[3])
	assert.Equal(t, false, db.lastArgs[4])
}

func TestFailOrRetryNonRetryableForcesTerminal(t *testing.T) {
	db := &queueDB{row: stubRow{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "failed"
		return nil
	}}}
	store := newTestStore(db)

	status, err := store.FailOrRetry(context.Background(), claimedJob(), domain.NonRetryable(errors.New("safety refusal")))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Equal(t, true, db.lastArgs[4])
}

func TestFailOrRetryStaleClaim(t *testing.T) {
	store := newTestStore(&queueDB{row: stubRow{}})
	_, err := store.FailOrRetry(context.Background(), claimedJob(), errors.New("x"))
	assert.ErrorIs(t, err, domain.ErrStaleClaim)
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, RetryBackoff(1))
	assert.Equal(t, time.Minute, RetryBackoff(2))
	assert.Equal(t, 2*time.Minute, RetryBackoff(3))
	assert.Equal(t, 15*time.Minute, RetryBackoff(10))
	assert.Equal(t, 30*time.Second, RetryBackoff(0))
}

func TestOrderCancelledNotFound(t *testing.T) {
	store := newTestStore(&queueDB{row: stubRow{}})
	_, err := store.OrderCancelled(context.Background(), "order-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSweepCountsOutcomes(t *testing.T) {
	db := &queueDB{
		execTag: pgconn.NewCommandTag("INSERT 0 1"),
		rows: &stubRows{rows: [][]any{
			{"job-1", "queued", int(1)},
			{"job-2", "failed", int(3)},
			{"job-3", "queued", int(2)},
		}},
	}
	store := newTestStore(db)
	r := NewReclaimer(store, zerolog.Nop(), time.Minute)

	requeued, failed, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, requeued)
	assert.Equal(t, 1, failed)

	// one audit event per swept job, each with its pg_notify companion
	events := 0
	for _, q := range db.queries {
		if strings.Contains(q, "insert into job_events") {
			events++
		}
	}
	assert.Equal(t, 3, events)
}
