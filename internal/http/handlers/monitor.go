package handlers

import (
	"net/http"
	"strconv"

	"alfie/internal/middleware"
)

// MonitorSnapshot serves queue health. Operators get the global view;
// everyone else is scoped to their own account's jobs.
func (a *App) MonitorSnapshot(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	scope := accountID
	if middleware.RoleFromContext(r.Context()) == middleware.RoleOperator {
		scope = ""
	}
	snap, err := a.Monitor.Snapshot(r.Context(), scope)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: monitor snapshot failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build snapshot")
		return
	}
	a.json(w, http.StatusOK, snap)
}

// MonitorEvents serves the recent audit trail, operator only.
func (a *App) MonitorEvents(w http.ResponseWriter, r *http.Request) {
	if middleware.RoleFromContext(r.Context()) != middleware.RoleOperator {
		a.error(w, http.StatusForbidden, "forbidden", "operator role required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be 1-500")
			return
		}
		limit = n
	}
	events, err := a.Store.RecentEvents(r.Context(), limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read events")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"events": events})
}
