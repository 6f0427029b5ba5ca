package handlers

import (
	"net/http"

	"miniarima/internal/domain"
)

// TierStats returns how many accounts sit on each subscription tier.
func (a *App) TierStats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Accounts.TierCounts(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	out := make(map[string]int, len(counts))
	total := 0
	for tier := domain.TierFree; tier <= domain.TierMax; tier++ {
		out[tier.String()] = counts[tier]
		total += counts[tier]
	}
	a.json(w, http.StatusOK, map[string]any{"tiers": out, "total": total})
}
