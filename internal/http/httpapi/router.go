package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"miniarima/internal/http/handlers"
	"miniarima/internal/infra"
	"miniarima/internal/middleware"
)

// NewRouter assembles the operator-facing admin API. Everything except the
// liveness probe sits behind the static admin token.
func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.Locale("ru"),
	)

	r.Get("/v1/healthz", app.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthToken(cfg.AdminToken))

		r.Get("/v1/report", app.GetReport)
		r.Get("/v1/models", app.GetModels)
		r.Post("/v1/sweep", app.TriggerSweep)

		r.Get("/v1/stats/tiers", app.TierStats)
		r.Get("/v1/accounts/by-handle/{handle}", app.FindAccountByHandle)

		r.Route("/v1/accounts/{id}", func(r chi.Router) {
			r.Get("/", app.GetAccount)
			r.Post("/tier", app.SetAccountTier)
			r.Post("/block", app.SetAccountBlocked)
			r.Post("/bonus", app.GrantAccountBonus)
		})
	})

	return r
}
