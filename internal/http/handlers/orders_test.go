package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfie/internal/domain"
	"alfie/internal/intent"
	"alfie/internal/middleware"
	"alfie/internal/quota"
)

type fakeStore struct {
	ordersByKey map[string]string
	orders      map[string]domain.Order
	enqueued    []intent.Translation
	cancelled   map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ordersByKey: map[string]string{},
		orders:      map[string]domain.Order{},
		cancelled:   map[string]int{},
	}
}

func (s *fakeStore) FindOrderByKey(ctx context.Context, accountID, key string) (string, error) {
	if id, ok := s.ordersByKey[accountID+"/"+key]; ok {
		return id, nil
	}
	return "", domain.ErrNotFound
}

func (s *fakeStore) EnqueueOrder(ctx context.Context, tr intent.Translation) error {
	s.enqueued = append(s.enqueued, tr)
	return nil
}

func (s *fakeStore) GetOrder(ctx context.Context, orderID, accountID string) (domain.Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.AccountID != accountID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *fakeStore) CancelOrder(ctx context.Context, orderID, accountID string) (int, error) {
	n, ok := s.cancelled[orderID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return n, nil
}

func (s *fakeStore) RecentEvents(ctx context.Context, limit int) ([]domain.JobEvent, error) {
	return nil, nil
}

type fakeLedger struct {
	balance domain.QuotaBalance
	allow   bool
}

func (l *fakeLedger) Balance(ctx context.Context, accountID string) (domain.QuotaBalance, error) {
	return l.balance, nil
}

func (l *fakeLedger) Authorize(ctx context.Context, accountID string, requiredUnits int) (quota.Decision, error) {
	return quota.Decision{Allowed: l.allow, Remaining: l.balance.Remaining()}, nil
}

func (l *fakeLedger) Thresholds(ctx context.Context, accountID string) (domain.Thresholds, error) {
	return domain.Thresholds{}, nil
}

func (l *fakeLedger) Credit(ctx context.Context, accountID string, units int) (domain.QuotaBalance, error) {
	l.balance.TotalUnits += units
	return l.balance, nil
}

func newTestApp(store *fakeStore, ledger *fakeLedger) *App {
	return &App{
		Translator: intent.NewTranslator(),
		Ledger:     ledger,
		Store:      store,
	}
}

func authedRequest(method, target string, body []byte, accountID, role string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := middleware.ContextWithAccount(req.Context(), accountID, role)
	return req.WithContext(ctx)
}

func validBrief() []byte {
	b, _ := json.Marshal(domain.CreativeBrief{
		Prompt: "spring promo for a coffee shop",
		Items: []domain.BriefItem{
			{Kind: domain.AssetKindImage, Quantity: 2},
		},
	})
	return b
}

func TestOrdersCreateAccepted(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{allow: true, balance: domain.QuotaBalance{TotalUnits: 100}}
	app := newTestApp(store, ledger)

	rec := httptest.NewRecorder()
	app.OrdersCreate(rec, authedRequest(http.MethodPost, "/v1/orders", validBrief(), "acct-1", ""))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp orderAcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, 2, resp.TotalUnits)
	assert.Equal(t, 2, resp.Jobs)
	assert.Equal(t, 98, resp.RemainingUnits)
	require.Len(t, store.enqueued, 1)
	assert.Equal(t, "acct-1", store.enqueued[0].AccountID)
}

func TestOrdersCreateDeclinedLeavesQueueUntouched(t *testing.T) {
	store := newFakeStore()
	ledger := &fakeLedger{allow: false, balance: domain.QuotaBalance{TotalUnits: 10, ConsumedUnits: 10}}
	app := newTestApp(store, ledger)

	rec := httptest.NewRecorder()
	app.OrdersCreate(rec, authedRequest(http.MethodPost, "/v1/orders", validBrief(), "acct-1", ""))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "quota_exceeded")
	assert.Empty(t, store.enqueued)
}

func TestOrdersCreateInvalidBrief(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeLedger{allow: true})

	body, _ := json.Marshal(domain.CreativeBrief{Prompt: "x"})
	rec := httptest.NewRecorder()
	app.OrdersCreate(rec, authedRequest(http.MethodPost, "/v1/orders", body, "acct-1", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_brief")
}

func TestOrdersCreateRequiresAuth(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeLedger{allow: true})

	rec := httptest.NewRecorder()
	app.OrdersCreate(rec, httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader(validBrief())))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrdersCreateIdempotentReplay(t *testing.T) {
	store := newFakeStore()
	store.ordersByKey["acct-1/brief-7"] = "order-1"
	store.orders["order-1"] = domain.Order{
		ID:        "order-1",
		AccountID: "acct-1",
		Jobs: []domain.Job{
			{Status: domain.JobStatusCompleted, CostUnits: 1},
			{Status: domain.JobStatusCompleted, CostUnits: 1},
		},
	}
	app := newTestApp(store, &fakeLedger{allow: true})

	req := authedRequest(http.MethodPost, "/v1/orders", validBrief(), "acct-1", "")
	req.Header.Set("Idempotency-Key", "brief-7")
	rec := httptest.NewRecorder()
	app.OrdersCreate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orderAcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Replayed)
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, string(domain.OrderStatusDone), resp.Status)
	assert.Empty(t, store.enqueued)
}

func TestOrderStatusNotFound(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeLedger{})

	req := authedRequest(http.MethodGet, "/v1/orders/order-9", nil, "acct-1", "")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("order_id", "order-9")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	app.OrderStatus(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderStatusAggregates(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.orders["order-1"] = domain.Order{
		ID:        "order-1",
		AccountID: "acct-1",
		Title:     "Spring Promo",
		CreatedAt: now,
		UpdatedAt: now,
		Jobs: []domain.Job{
			{ID: "j1", Type: domain.JobTypeRenderImage, Status: domain.JobStatusCompleted},
			{ID: "j2", Type: domain.JobTypeRenderImage, Status: domain.JobStatusRunning},
		},
	}
	app := newTestApp(store, &fakeLedger{})

	req := authedRequest(http.MethodGet, "/v1/orders/order-1", nil, "acct-1", "")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("order_id", "order-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	app.OrderStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view orderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, string(domain.OrderStatusRunning), view.Status)
	assert.Len(t, view.Jobs, 2)
}

func TestOrderCancel(t *testing.T) {
	store := newFakeStore()
	store.cancelled["order-1"] = 3
	app := newTestApp(store, &fakeLedger{})

	req := authedRequest(http.MethodPost, "/v1/orders/order-1/cancel", nil, "acct-1", "")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("order_id", "order-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	app.OrderCancel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["cancelled_jobs"])
	assert.Equal(t, "cancelled", resp["status"])
}

func TestQuotaStatus(t *testing.T) {
	ledger := &fakeLedger{balance: domain.QuotaBalance{
		AccountID:     "acct-1",
		TotalUnits:    100,
		ConsumedUnits: 40,
	}}
	app := newTestApp(newFakeStore(), ledger)

	rec := httptest.NewRecorder()
	app.QuotaStatus(rec, authedRequest(http.MethodGet, "/v1/quota", nil, "acct-1", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp quotaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.RemainingUnits)
	assert.InDelta(t, 0.4, resp.Fraction, 1e-9)
}
