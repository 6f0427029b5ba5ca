package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"miniarima/internal/domain"
	"miniarima/internal/infra"
	"miniarima/internal/providers/openai"
)

// System state keys for the persisted snapshot and its rendered report.
const (
	KeyModelStatus = "model_status"
	KeyLastReport  = "last_report"
)

const probePrompt = "Test"

// Prober is the slice of the provider client the monitor needs.
type Prober interface {
	CompleteChat(ctx context.Context, model string, messages []openai.Message, temperature float64, class openai.TimeoutClass) (string, error)
	GenerateImage(ctx context.Context, model, prompt string, width, height int, format string, class openai.TimeoutClass) ([]string, error)
}

// Monitor maintains the availability map for every configured model. The
// map is advisory: IsAvailable gates nothing by itself, callers decide
// policy.
type Monitor struct {
	client Prober
	system domain.SystemRepository
	cfg    *infra.Config
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	snapshot   *domain.ModelAvailability
	lastReport string
}

// NewMonitor builds a monitor over the given provider client and system
// state storage.
func NewMonitor(client Prober, system domain.SystemRepository, cfg *infra.Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client: client,
		system: system,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ProbeChat issues a minimal synthetic completion against one chat model
// and maps the outcome to a status. Empty content still counts as ok.
func (m *Monitor) ProbeChat(ctx context.Context, model string) domain.ModelStatus {
	_, err := m.client.CompleteChat(ctx, model,
		[]openai.Message{{Role: "user", Content: probePrompt}}, 0.7, openai.TimeoutProbeChat)
	return statusFromError(err)
}

// ProbeImage issues a minimal synthetic generation against one image model.
func (m *Monitor) ProbeImage(ctx context.Context, model string) domain.ModelStatus {
	_, err := m.client.GenerateImage(ctx, model, probePrompt, 512, 512, "url", openai.TimeoutProbeImage)
	return statusFromError(err)
}

// RunFullSweep probes every distinct chat and image model concurrently,
// adopts the resulting snapshot and persists both the raw status map and
// the rendered report.
func (m *Monitor) RunFullSweep(ctx context.Context) error {
	type target struct {
		model string
		image bool
	}

	var targets []target
	seen := map[string]bool{}
	add := func(model string, image bool) {
		if model != "" && !seen[model] {
			seen[model] = true
			targets = append(targets, target{model: model, image: image})
		}
	}
	for _, model := range m.cfg.AllChatModels() {
		add(model, false)
	}
	for _, model := range m.cfg.Participants {
		add(model, false)
	}
	add(m.cfg.Arbiter, false)
	for _, model := range m.cfg.ImageModels {
		add(model, true)
	}

	m.logger.Info().Int("models", len(targets)).Msg("running model health sweep")
	started := m.now()

	statuses := make([]domain.ModelStatus, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, tgt := range targets {
		g.Go(func() error {
			if tgt.image {
				statuses[i] = m.ProbeImage(gctx, tgt.model)
			} else {
				statuses[i] = m.ProbeChat(gctx, tgt.model)
			}
			return nil
		})
	}
	_ = g.Wait() // probes never return errors, only statuses

	snapshot := &domain.ModelAvailability{
		Statuses:  make(map[string]domain.ModelStatus, len(targets)),
		CheckedAt: started,
	}
	for i, tgt := range targets {
		snapshot.Statuses[tgt.model] = statuses[i]
	}

	report := RenderReport(language.Russian, snapshot, m.cfg.ReportLocation)

	m.mu.Lock()
	m.snapshot = snapshot
	m.lastReport = report
	m.mu.Unlock()

	raw, err := json.Marshal(snapshot.Statuses)
	if err != nil {
		return fmt.Errorf("marshal status snapshot: %w", err)
	}
	if err := m.system.Set(ctx, KeyModelStatus, string(raw)); err != nil {
		return fmt.Errorf("persist status snapshot: %w", err)
	}
	if err := m.system.Set(ctx, KeyLastReport, report); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}

	m.logger.Info().Dur("elapsed", m.now().Sub(started)).Msg("model health sweep finished")
	return nil
}

// StartupReconcile adopts a persisted snapshot when it is fresh enough,
// avoiding a redundant sweep on frequent restarts; otherwise it runs a
// full sweep.
func (m *Monitor) StartupReconcile(ctx context.Context) error {
	raw, updatedAt, err := m.system.Get(ctx, KeyModelStatus)
	if err == nil && m.now().Sub(updatedAt) < m.cfg.FreshnessWindow {
		var statuses map[string]domain.ModelStatus
		if jsonErr := json.Unmarshal([]byte(raw), &statuses); jsonErr == nil {
			report, _, reportErr := m.system.Get(ctx, KeyLastReport)
			if reportErr != nil {
				report = ""
			}
			m.mu.Lock()
			m.snapshot = &domain.ModelAvailability{Statuses: statuses, CheckedAt: updatedAt}
			m.lastReport = report
			m.mu.Unlock()
			m.logger.Info().Time("checked_at", updatedAt).
				Msg("adopted persisted model status, skipping startup sweep")
			return nil
		}
		m.logger.Warn().Msg("persisted model status is unreadable, running full sweep")
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("read persisted status: %w", err)
	}
	return m.RunFullSweep(ctx)
}

// IsAvailable reports the advisory status for a model. No caller is forced
// to honor it: enforcement (for example refusing enhanced mode while a
// participant is down) is a deliberate policy extension point and is left
// permissive here.
func (m *Monitor) IsAvailable(model string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot.Available(model)
}

// Snapshot returns the current availability map, or nil before the first
// sweep or reconcile.
func (m *Monitor) Snapshot() *domain.ModelAvailability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// LastReport returns the most recent rendered report, falling back to the
// persisted copy when the process has not swept yet.
func (m *Monitor) LastReport(ctx context.Context) (string, error) {
	m.mu.RLock()
	report := m.lastReport
	m.mu.RUnlock()
	if report != "" {
		return report, nil
	}
	report, _, err := m.system.Get(ctx, KeyLastReport)
	return report, err
}

func statusFromError(err error) domain.ModelStatus {
	switch {
	case err == nil:
		return domain.StatusOK
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	default:
		var ue *domain.UpstreamError
		if errors.As(err, &ue) {
			return domain.ModelStatus(fmt.Sprintf("upstream-error:%d", ue.Code))
		}
		reason := err.Error()
		if i := strings.IndexByte(reason, '\n'); i >= 0 {
			reason = reason[:i]
		}
		return domain.ModelStatus("error:" + reason)
	}
}
