package handlers

import (
	"net/http"

	"golang.org/x/text/language"

	"miniarima/internal/health"
	"miniarima/internal/middleware"
)

// GetReport returns the availability report rendered in the negotiated
// language. The in-memory snapshot wins; the persisted Russian report is
// the fallback right after a restart.
func (a *App) GetReport(w http.ResponseWriter, r *http.Request) {
	if snapshot := a.Reporter.Snapshot(); snapshot != nil {
		tag, _ := language.MatchStrings(health.ReportLanguages, middleware.LocaleFromContext(r.Context()))
		a.json(w, http.StatusOK, map[string]any{
			"checked_at": snapshot.CheckedAt,
			"report":     health.RenderReport(tag, snapshot, a.Cfg.ReportLocation),
		})
		return
	}

	report, err := a.Reporter.LastReport(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"report": report})
}

// GetModels returns the raw per-model status map.
func (a *App) GetModels(w http.ResponseWriter, r *http.Request) {
	snapshot := a.Reporter.Snapshot()
	if snapshot == nil {
		a.json(w, http.StatusOK, map[string]any{"statuses": map[string]string{}})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"checked_at": snapshot.CheckedAt,
		"statuses":   snapshot.Statuses,
	})
}

// TriggerSweep runs a full availability sweep synchronously and returns the
// fresh statuses.
func (a *App) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if err := a.Reporter.RunFullSweep(r.Context()); err != nil {
		a.error(w, r, err)
		return
	}
	a.GetModels(w, r)
}
