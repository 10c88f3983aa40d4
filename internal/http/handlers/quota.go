package handlers

import (
	"net/http"
	"time"

	"alfie/internal/domain"
)

type quotaResponse struct {
	AccountID      string            `json:"account_id"`
	PeriodStart    time.Time         `json:"period_start"`
	TotalUnits     int               `json:"total_units"`
	ConsumedUnits  int               `json:"consumed_units"`
	RemainingUnits int               `json:"remaining_units"`
	Fraction       float64           `json:"fraction"`
	Warnings       domain.Thresholds `json:"warnings"`
}

func (a *App) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	b, err := a.Ledger.Balance(r.Context(), accountID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read quota")
		return
	}
	warnings, err := a.Ledger.Thresholds(r.Context(), accountID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read quota thresholds")
		return
	}
	a.json(w, http.StatusOK, quotaResponse{
		AccountID:      accountID,
		PeriodStart:    b.PeriodStart,
		TotalUnits:     b.TotalUnits,
		ConsumedUnits:  b.ConsumedUnits,
		RemainingUnits: b.Remaining(),
		Fraction:       b.Fraction(),
		Warnings:       warnings,
	})
}
