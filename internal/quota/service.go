package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"miniarima/internal/domain"
	"miniarima/internal/entitlement"
	"miniarima/internal/infra"
)

// Service decides whether a user may issue a request of a given kind today.
// It never records usage itself: the caller records one increment only
// after the downstream call succeeded, so failed calls do not consume
// quota.
type Service struct {
	entitlements *entitlement.Service
	usage        domain.UsageRepository
	cfg          *infra.Config
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService builds the quota layer on top of entitlement resolution.
func NewService(entitlements *entitlement.Service, usage domain.UsageRepository, cfg *infra.Config, logger zerolog.Logger) *Service {
	return &Service{
		entitlements: entitlements,
		usage:        usage,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// Authorize returns nil when the user may issue one request of the given
// kind, or an error wrapping domain.ErrUnauthorized with the denial reason.
// Tier resolution (including lazy expiry normalization) happens before the
// limit table lookup.
func (s *Service) Authorize(ctx context.Context, userID int64, kind domain.UsageKind) error {
	account, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if account.Blocked {
		return fmt.Errorf("account is blocked: %w", domain.ErrUnauthorized)
	}
	if s.cfg.IsAdmin(userID) {
		return nil
	}

	limits := s.cfg.Limits[account.Tier]
	if account.Tier == domain.TierFree && account.BonusGranted {
		// The channel bonus substitutes a larger normal-only allowance.
		limits = domain.TierLimits{Daily: s.cfg.BonusDaily, Enhanced: 0}
	}

	var limit int
	switch kind {
	case domain.UsageEnhanced:
		limit = limits.Enhanced
	default:
		limit = limits.Daily
	}
	if limit <= 0 {
		return fmt.Errorf("tier %s has no %s quota: %w", account.Tier, kind, domain.ErrUnauthorized)
	}

	count, err := s.usage.CountToday(ctx, userID, s.Today(), kind)
	if err != nil {
		return fmt.Errorf("count usage: %w", err)
	}
	if count >= limit {
		s.logger.Debug().Int64("user_id", userID).Str("kind", string(kind)).
			Int("count", count).Int("limit", limit).Msg("daily limit reached")
		return fmt.Errorf("daily %s limit of %d reached: %w", kind, limit, domain.ErrUnauthorized)
	}
	return nil
}

// Remaining returns used and allowed counts for display purposes. Admins
// report the configured limit as allowed but are never denied.
func (s *Service) Remaining(ctx context.Context, userID int64, kind domain.UsageKind) (used, limit int, err error) {
	account, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	limits := s.cfg.Limits[account.Tier]
	if account.Tier == domain.TierFree && account.BonusGranted {
		limits = domain.TierLimits{Daily: s.cfg.BonusDaily, Enhanced: 0}
	}
	limit = limits.Daily
	if kind == domain.UsageEnhanced {
		limit = limits.Enhanced
	}
	used, err = s.usage.CountToday(ctx, userID, s.Today(), kind)
	return used, limit, err
}

// Record registers one accepted request for today.
func (s *Service) Record(ctx context.Context, userID int64, model string, kind domain.UsageKind) error {
	return s.usage.Record(ctx, userID, s.Today(), model, kind)
}

// Today resolves the current calendar day in the fixed reporting timezone.
func (s *Service) Today() time.Time {
	t := s.now().In(s.cfg.ReportLocation)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.ReportLocation)
}
