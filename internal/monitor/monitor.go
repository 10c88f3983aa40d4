package monitor

import (
	"context"
	"fmt"
	"time"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/sqlinline"
)

const defaultRecentLimit = 20

// Transition is one recent job state change, for the snapshot's activity feed.
type Transition struct {
	JobID     string           `json:"job_id"`
	OrderID   string           `json:"order_id"`
	Type      domain.JobType   `json:"type"`
	Status    domain.JobStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Snapshot is the aggregate queue health served to observers.
type Snapshot struct {
	Scope          string           `json:"scope"`
	Counts         map[string]int64 `json:"counts"`
	BacklogSeconds float64          `json:"backlog_seconds"`
	StuckJobs      int64            `json:"stuck_jobs"`
	Recent         []Transition     `json:"recent"`
	TakenAt        time.Time        `json:"taken_at"`
}

// Monitor is the read-only aggregation over the job store. It never mutates
// state and is safe to poll at seconds-level frequency; everything it runs
// is a plain read query.
type Monitor struct {
	sql         infra.SQLExecutor
	recentLimit int
}

func New(sql infra.SQLExecutor) *Monitor {
	return &Monitor{sql: sql, recentLimit: defaultRecentLimit}
}

// Snapshot aggregates queue health. An empty accountID yields the global
// (privileged) view.
func (m *Monitor) Snapshot(ctx context.Context, accountID string) (Snapshot, error) {
	snap := Snapshot{
		Scope:   "global",
		Counts:  map[string]int64{},
		TakenAt: time.Now().UTC(),
	}
	if accountID != "" {
		snap.Scope = "account"
	}

	if err := m.loadCounts(ctx, accountID, &snap); err != nil {
		return Snapshot{}, err
	}
	if err := m.loadBacklog(ctx, accountID, &snap); err != nil {
		return Snapshot{}, err
	}
	if err := m.loadStuck(ctx, accountID, &snap); err != nil {
		return Snapshot{}, err
	}
	if err := m.loadRecent(ctx, accountID, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (m *Monitor) loadCounts(ctx context.Context, accountID string, snap *Snapshot) error {
	query := sqlinline.QMonitorCountsGlobal
	args := []any{}
	if accountID != "" {
		query = sqlinline.QMonitorCountsAccount
		args = append(args, accountID)
	}
	rows, err := m.sql.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("monitor counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("scan counts: %w", err)
		}
		snap.Counts[status] = n
	}
	return rows.Err()
}

func (m *Monitor) loadBacklog(ctx context.Context, accountID string, snap *Snapshot) error {
	query := sqlinline.QMonitorBacklogGlobal
	args := []any{}
	if accountID != "" {
		query = sqlinline.QMonitorBacklogAccount
		args = append(args, accountID)
	}
	if err := m.sql.QueryRow(ctx, query, args...).Scan(&snap.BacklogSeconds); err != nil {
		return fmt.Errorf("monitor backlog: %w", err)
	}
	return nil
}

func (m *Monitor) loadStuck(ctx context.Context, accountID string, snap *Snapshot) error {
	query := sqlinline.QMonitorStuckGlobal
	args := []any{}
	if accountID != "" {
		query = sqlinline.QMonitorStuckAccount
		args = append(args, accountID)
	}
	if err := m.sql.QueryRow(ctx, query, args...).Scan(&snap.StuckJobs); err != nil {
		return fmt.Errorf("monitor stuck: %w", err)
	}
	return nil
}

func (m *Monitor) loadRecent(ctx context.Context, accountID string, snap *Snapshot) error {
	query := sqlinline.QMonitorRecentGlobal
	args := []any{m.recentLimit}
	if accountID != "" {
		query = sqlinline.QMonitorRecentAccount
		args = []any{accountID, m.recentLimit}
	}
	rows, err := m.sql.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("monitor recent: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.JobID, &tr.OrderID, &tr.Type, &tr.Status, &tr.Error, &tr.UpdatedAt); err != nil {
			return fmt.Errorf("scan recent: %w", err)
		}
		snap.Recent = append(snap.Recent, tr)
	}
	return rows.Err()
}
