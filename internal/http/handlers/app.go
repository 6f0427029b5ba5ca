package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"miniarima/internal/domain"
	"miniarima/internal/entitlement"
	"miniarima/internal/infra"
	"miniarima/internal/quota"
)

// Reporter is the slice of the health monitor the admin surface uses.
type Reporter interface {
	Snapshot() *domain.ModelAvailability
	LastReport(ctx context.Context) (string, error)
	RunFullSweep(ctx context.Context) error
}

// App bundles the dependencies of the admin HTTP surface.
type App struct {
	Cfg          *infra.Config
	Entitlements *entitlement.Service
	Quota        *quota.Service
	Accounts     domain.AccountRepository
	Reporter     Reporter
	Logger       zerolog.Logger
}

func NewApp(
	cfg *infra.Config,
	entitlements *entitlement.Service,
	quotas *quota.Service,
	accounts domain.AccountRepository,
	reporter Reporter,
	logger zerolog.Logger,
) *App {
	return &App{
		Cfg:          cfg,
		Entitlements: entitlements,
		Quota:        quotas,
		Accounts:     accounts,
		Reporter:     reporter,
		Logger:       logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("handler failed")
	}
	a.json(w, status, map[string]string{"error": err.Error()})
}
