package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alfie/internal/domain"
)

type orderAcceptedResponse struct {
	OrderID        string            `json:"order_id"`
	Status         string            `json:"status"`
	TotalUnits     int               `json:"total_units"`
	RemainingUnits int               `json:"remaining_units"`
	Jobs           int               `json:"jobs"`
	Warnings       domain.Thresholds `json:"warnings"`
	Replayed       bool              `json:"replayed,omitempty"`
}

type jobView struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	CostUnits int             `json:"cost_units"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type orderView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Jobs      []jobView `json:"jobs"`
}

// OrdersCreate accepts a creative brief, authorizes it against the quota
// ledger and enqueues the fan-out. Submission is all-or-nothing; a declined
// or invalid brief enqueues no jobs.
func (a *App) OrdersCreate(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	var brief domain.CreativeBrief
	if err := json.NewDecoder(r.Body).Decode(&brief); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		brief.IdempotencyKey = key
	}

	if brief.IdempotencyKey != "" {
		existingID, err := a.Store.FindOrderByKey(r.Context(), accountID, brief.IdempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to check idempotency key")
			return
		}
		if existingID != "" {
			a.replayOrder(w, r, existingID, accountID)
			return
		}
	}

	tr, err := a.Translator.Translate(accountID, brief)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_brief", err.Error())
		return
	}

	decision, err := a.Ledger.Authorize(r.Context(), accountID, tr.TotalUnits)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	if !decision.Allowed {
		a.error(w, http.StatusPaymentRequired, "quota_exceeded", "order exceeds the remaining quota for this period")
		return
	}

	if err := a.Store.EnqueueOrder(r.Context(), tr); err != nil {
		a.Logger.Error().Err(err).Str("account_id", accountID).Msg("http: enqueue order failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue order")
		return
	}

	warnings, err := a.Ledger.Thresholds(r.Context(), accountID)
	if err != nil {
		// Advisory only; the order is already queued.
		a.Logger.Warn().Err(err).Msg("http: threshold read failed")
	}
	a.json(w, http.StatusAccepted, orderAcceptedResponse{
		OrderID:        tr.OrderID,
		Status:         string(domain.OrderStatusRunning),
		TotalUnits:     tr.TotalUnits,
		RemainingUnits: decision.Remaining - tr.TotalUnits,
		Jobs:           len(tr.Jobs),
		Warnings:       warnings,
	})
}

// replayOrder serves the stored outcome for a duplicate submission.
func (a *App) replayOrder(w http.ResponseWriter, r *http.Request, orderID, accountID string) {
	o, err := a.Store.GetOrder(r.Context(), orderID, accountID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}
	units := 0
	for _, j := range o.Jobs {
		units += j.CostUnits
	}
	a.json(w, http.StatusOK, orderAcceptedResponse{
		OrderID:    o.ID,
		Status:     string(o.Status()),
		TotalUnits: units,
		Jobs:       len(o.Jobs),
		Replayed:   true,
	})
}

func (a *App) OrderStatus(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "order_id required")
		return
	}
	o, err := a.Store.GetOrder(r.Context(), orderID, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}
	view := orderView{
		ID:        o.ID,
		Title:     o.Title,
		Status:    string(o.Status()),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for _, j := range o.Jobs {
		view.Jobs = append(view.Jobs, jobView{
			ID:        j.ID,
			Type:      string(j.Type),
			Status:    string(j.Status),
			Attempts:  j.Attempts,
			CostUnits: j.CostUnits,
			Error:     j.ErrorMessage,
			Result:    j.Result,
			UpdatedAt: j.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, view)
}

// OrderCancel cancels the order's queued jobs. Jobs already running finish
// their attempt; the dispatcher discards their results.
func (a *App) OrderCancel(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "order_id required")
		return
	}
	cancelled, err := a.Store.CancelOrder(r.Context(), orderID, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel order")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"order_id":       orderID,
		"status":         string(domain.OrderStatusCancelled),
		"cancelled_jobs": cancelled,
	})
}
