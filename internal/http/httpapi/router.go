package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"alfie/internal/http/handlers"
	"alfie/internal/infra"
	"alfie/internal/middleware"
)

// NewRouter wires the public API surface. Everything under /v1 except the
// health check sits behind the JWT gate.
func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", app.OrdersCreate)
			r.Get("/{order_id}", app.OrderStatus)
			r.Post("/{order_id}/cancel", app.OrderCancel)
			r.Get("/{order_id}/assets", app.OrderAssetsDownload)
		})
		r.Get("/v1/quota", app.QuotaStatus)
		r.Get("/v1/monitor", app.MonitorSnapshot)
		r.Get("/v1/monitor/events", app.MonitorEvents)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Post("/dispatch", app.AdminDispatchTick)
			r.Post("/quota/credit", app.AdminQuotaCredit)
		})
	})

	return r
}
