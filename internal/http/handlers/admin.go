package handlers

import (
	"net/http"

	"alfie/internal/middleware"
)

// AdminDispatchTick claims and runs one batch immediately, bypassing the
// worker's poll interval. Useful when draining a backlog by hand.
func (a *App) AdminDispatchTick(w http.ResponseWriter, r *http.Request) {
	if middleware.RoleFromContext(r.Context()) != middleware.RoleOperator {
		a.error(w, http.StatusForbidden, "forbidden", "operator role required")
		return
	}
	if a.Dispatcher == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "no dispatcher attached to this process")
		return
	}
	processed, err := a.Dispatcher.Tick(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: manual dispatch tick failed")
		a.error(w, http.StatusInternalServerError, "internal", "dispatch tick failed")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"processed": processed})
}

// AdminQuotaCredit tops up an account's allotment, operator only.
func (a *App) AdminQuotaCredit(w http.ResponseWriter, r *http.Request) {
	if middleware.RoleFromContext(r.Context()) != middleware.RoleOperator {
		a.error(w, http.StatusForbidden, "forbidden", "operator role required")
		return
	}
	var req struct {
		AccountID string `json:"account_id"`
		Units     int    `json:"units"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.AccountID == "" || req.Units <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "account_id and positive units required")
		return
	}
	b, err := a.Ledger.Credit(r.Context(), req.AccountID, req.Units)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to credit quota")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"account_id":      req.AccountID,
		"total_units":     b.TotalUnits,
		"consumed_units":  b.ConsumedUnits,
		"remaining_units": b.Remaining(),
	})
}
