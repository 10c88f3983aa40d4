package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/intent"
	"alfie/internal/middleware"
	"alfie/internal/monitor"
	"alfie/internal/quota"
)

// OrderStore is the slice of the queue store the HTTP surface needs.
type OrderStore interface {
	FindOrderByKey(ctx context.Context, accountID, key string) (string, error)
	EnqueueOrder(ctx context.Context, tr intent.Translation) error
	GetOrder(ctx context.Context, orderID, accountID string) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID, accountID string) (int, error)
	RecentEvents(ctx context.Context, limit int) ([]domain.JobEvent, error)
}

type QuotaLedger interface {
	Balance(ctx context.Context, accountID string) (domain.QuotaBalance, error)
	Authorize(ctx context.Context, accountID string, requiredUnits int) (quota.Decision, error)
	Thresholds(ctx context.Context, accountID string) (domain.Thresholds, error)
	Credit(ctx context.Context, accountID string, units int) (domain.QuotaBalance, error)
}

type QueueMonitor interface {
	Snapshot(ctx context.Context, accountID string) (monitor.Snapshot, error)
}

// DispatchRunner triggers one manual claim-and-run batch.
type DispatchRunner interface {
	Tick(ctx context.Context) (int, error)
}

// App bundles the wired services behind the HTTP surface.
type App struct {
	Logger     infra.Logger
	Translator *intent.Translator
	Ledger     QuotaLedger
	Store      OrderStore
	Monitor    QueueMonitor
	Dispatcher DispatchRunner
	Assets     AssetReader
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: code, Message: message})
}

func (a *App) currentAccountID(r *http.Request) string {
	return middleware.AccountIDFromContext(r.Context())
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
