package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"miniarima/internal/domain"
)

func userIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", raw, domain.ErrValidation)
	}
	return id, nil
}

// GetAccount returns one account with its usage counters for today.
func (a *App) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		a.error(w, r, err)
		return
	}
	account, err := a.Entitlements.Resolve(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	normal, _, err := a.Quota.Remaining(r.Context(), id, domain.UsageNormal)
	if err != nil {
		a.error(w, r, err)
		return
	}
	enhanced, _, err := a.Quota.Remaining(r.Context(), id, domain.UsageEnhanced)
	if err != nil {
		a.error(w, r, err)
		return
	}

	resp := map[string]any{
		"id":            account.ID,
		"handle":        account.Handle,
		"tier":          account.Tier.String(),
		"verified":      account.Verified,
		"blocked":       account.Blocked,
		"bonus":         account.BonusGranted,
		"used_today":    normal,
		"used_enhanced": enhanced,
		"created_at":    account.CreatedAt,
	}
	if account.TierExpiry != nil {
		resp["tier_expiry"] = account.TierExpiry
	}
	a.json(w, http.StatusOK, resp)
}

// FindAccountByHandle resolves a display handle (with or without a leading
// @) to the account id.
func (a *App) FindAccountByHandle(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	account, err := a.Accounts.GetByHandle(r.Context(), handle)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":     account.ID,
		"handle": account.Handle,
		"tier":   account.Tier.String(),
	})
}

// SetAccountTier grants a subscription tier for a number of days. Zero or
// negative days on a paid tier is rejected; the free tier carries no expiry.
func (a *App) SetAccountTier(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		a.error(w, r, err)
		return
	}
	var req struct {
		Tier string `json:"tier"`
		Days int    `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, fmt.Errorf("invalid body: %w", domain.ErrValidation))
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		a.error(w, r, err)
		return
	}

	var expiry *time.Time
	if tier != domain.TierFree {
		if req.Days <= 0 {
			a.error(w, r, fmt.Errorf("days must be positive for tier %s: %w", tier, domain.ErrValidation))
			return
		}
		t := time.Now().AddDate(0, 0, req.Days)
		expiry = &t
	}

	if err := a.Entitlements.GrantTier(r.Context(), id, tier, expiry); err != nil {
		a.error(w, r, err)
		return
	}
	a.Logger.Info().Int64("user_id", id).Str("tier", tier.String()).Int("days", req.Days).
		Msg("tier granted")
	a.json(w, http.StatusOK, map[string]string{"tier": tier.String()})
}

// SetAccountBlocked toggles the block flag.
func (a *App) SetAccountBlocked(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		a.error(w, r, err)
		return
	}
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, fmt.Errorf("invalid body: %w", domain.ErrValidation))
		return
	}
	if err := a.Entitlements.SetBlocked(r.Context(), id, req.Blocked); err != nil {
		a.error(w, r, err)
		return
	}
	a.Logger.Info().Int64("user_id", id).Bool("blocked", req.Blocked).Msg("block flag updated")
	a.json(w, http.StatusOK, map[string]bool{"blocked": req.Blocked})
}

// GrantAccountBonus marks the free-tier channel bonus as claimed.
func (a *App) GrantAccountBonus(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		a.error(w, r, err)
		return
	}
	if err := a.Entitlements.GrantBonus(r.Context(), id); err != nil {
		a.error(w, r, err)
		return
	}
	a.Logger.Info().Int64("user_id", id).Msg("bonus granted")
	a.json(w, http.StatusOK, map[string]bool{"bonus": true})
}
