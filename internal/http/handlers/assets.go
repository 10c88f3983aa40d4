package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"alfie/internal/domain"
	ziputil "alfie/pkg/zip"
)

// AssetReader resolves stored asset keys to their bytes.
type AssetReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// OrderAssetsDownload bundles the order's finished assets into a single zip.
// Jobs that have not completed yet are simply absent from the archive.
func (a *App) OrderAssetsDownload(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing account context")
		return
	}
	if a.Assets == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "asset storage is not attached to this process")
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

	var assets []ziputil.Asset
	for _, j := range o.Jobs {
		if j.Status != domain.JobStatusCompleted || len(j.Result) == 0 {
			continue
		}
		var result domain.RenderResult
		if err := json.Unmarshal(j.Result, &result); err != nil || result.AssetURL == "" {
			continue
		}
		data, err := a.Assets.Read(r.Context(), result.AssetURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", j.ID).Msg("http: asset read failed, skipping")
			continue
		}
		assets = append(assets, ziputil.Asset{
			Filename: fmt.Sprintf("%s-%s", j.ID, path.Base(result.AssetURL)),
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusConflict, "no_assets", "order has no completed assets yet")
		return
	}

	archive := ziputil.ArchiveAssets(assets)
	if archive == nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "order-"+o.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
