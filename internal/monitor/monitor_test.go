package monitor

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(row[i]).Convert(target.Type()))
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type fakeRow struct {
	vals []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(r.vals[i]).Convert(target.Type()))
	}
	return nil
}

// monitorDB routes each query to scripted results by fragments of the SQL
// text, recording the args it saw.
type monitorDB struct {
	lastArgs map[string][]any
}

func newMonitorDB() *monitorDB {
	return &monitorDB{lastArgs: map[string][]any{}}
}

func (db *monitorDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *monitorDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch {
	case strings.Contains(query, "min(created_at)"):
		db.lastArgs["backlog"] = args
		return fakeRow{vals: []any{12.5}}
	case strings.Contains(query, "timeout_seconds"):
		db.lastArgs["stuck"] = args
		return fakeRow{vals: []any{int64(1)}}
	}
	return fakeRow{vals: []any{int64(0)}}
}

func (db *monitorDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(query, "group by status"):
		db.lastArgs["counts"] = args
		return &fakeRows{rows: [][]any{
			{"queued", int64(3)},
			{"running", int64(1)},
			{"completed", int64(7)},
		}}, nil
	case strings.Contains(query, "order by updated_at desc"):
		db.lastArgs["recent"] = args
		return &fakeRows{rows: [][]any{
			{"job-1", "order-1", "render_image", "completed", "", time.Now().UTC()},
		}}, nil
	}
	return &fakeRows{}, nil
}

func TestSnapshotGlobal(t *testing.T) {
	db := newMonitorDB()
	snap, err := New(db).Snapshot(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "global", snap.Scope)
	assert.Equal(t, int64(3), snap.Counts["queued"])
	assert.Equal(t, int64(7), snap.Counts["completed"])
	assert.Equal(t, 12.5, snap.BacklogSeconds)
	assert.Equal(t, int64(1), snap.StuckJobs)
	require.Len(t, snap.Recent, 1)
	assert.Equal(t, "job-1", snap.Recent[0].JobID)
	assert.Empty(t, db.lastArgs["counts"])
	assert.Empty(t, db.lastArgs["backlog"])
}

func TestSnapshotAccountScoped(t *testing.T) {
	db := newMonitorDB()
	snap, err := New(db).Snapshot(context.Background(), "acct-9")
	require.NoError(t, err)

	assert.Equal(t, "account", snap.Scope)
	require.NotEmpty(t, db.lastArgs["counts"])
	assert.Equal(t, "acct-9", db.lastArgs["counts"][0])
	assert.Equal(t, "acct-9", db.lastArgs["backlog"][0])
	assert.Equal(t, "acct-9", db.lastArgs["stuck"][0])
	assert.Equal(t, "acct-9", db.lastArgs["recent"][0])
}

func TestListenerSubscribeFanOut(t *testing.T) {
	l := &Listener{subs: map[chan Notification]struct{}{}}
	ch, cancel := l.Subscribe()
	defer cancel()

	l.broadcast(Notification{JobID: "job-1", Message: "completed"})
	select {
	case note := <-ch:
		assert.Equal(t, "job-1", note.JobID)
	default:
		t.Fatal("expected a notification")
	}

	cancel()
	l.broadcast(Notification{JobID: "job-2"})
	select {
	case note, ok := <-ch:
		if ok {
			t.Fatalf("unexpected notification after cancel: %+v", note)
		}
	default:
	}
}
