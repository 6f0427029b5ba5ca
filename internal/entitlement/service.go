package entitlement

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"miniarima/internal/domain"
)

// Service resolves account facts through the cache and funnels every
// account mutation through one place so no call site can forget to
// invalidate.
type Service struct {
	repo   domain.AccountRepository
	cache  *Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewService wires the cache in front of the account repository.
func NewService(repo domain.AccountRepository, cache *Cache, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve returns the account for id, serving from the cache when possible.
// An expired paid tier is normalized to free lazily: the downgrade is
// persisted before the account is reported, so a second independent read
// observes the same result.
func (s *Service) Resolve(ctx context.Context, id int64) (*domain.Account, error) {
	if account, ok := s.cache.Get(id); ok {
		return account, nil
	}

	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.TierExpired(s.now()) {
		s.logger.Info().Int64("user_id", id).Str("tier", account.Tier.String()).
			Msg("subscription expired, downgrading to free")
		if err := s.repo.SetTier(ctx, id, domain.TierFree, nil); err != nil {
			return nil, err
		}
		account.Tier = domain.TierFree
		account.TierExpiry = nil
	}

	s.cache.Put(id, account)
	return account, nil
}

// Register upserts the account on first contact and refreshes the cache.
func (s *Service) Register(ctx context.Context, id int64, handle string) (*domain.Account, error) {
	account, err := s.repo.Upsert(ctx, id, handle)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(id)
	s.cache.Put(id, account)
	return account, nil
}

// MarkVerified persists the verified flag, then invalidates the shadow copy.
func (s *Service) MarkVerified(ctx context.Context, id int64) error {
	return s.mutate(id, s.repo.SetVerified(ctx, id, true))
}

// GrantTier sets a subscription tier with its expiry.
func (s *Service) GrantTier(ctx context.Context, id int64, tier domain.Tier, expiry *time.Time) error {
	return s.mutate(id, s.repo.SetTier(ctx, id, tier, expiry))
}

// GrantBonus marks the free-tier bonus as claimed.
func (s *Service) GrantBonus(ctx context.Context, id int64) error {
	return s.mutate(id, s.repo.SetBonus(ctx, id))
}

// SetBlocked toggles the account block flag.
func (s *Service) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return s.mutate(id, s.repo.SetBlocked(ctx, id, blocked))
}

// SetInstruction stores or clears (nil) the custom system instruction.
func (s *Service) SetInstruction(ctx context.Context, id int64, instruction *string) error {
	return s.mutate(id, s.repo.SetInstruction(ctx, id, instruction))
}

// SetTemperature stores or clears (nil) the sampling temperature override.
func (s *Service) SetTemperature(ctx context.Context, id int64, temperature *float64) error {
	return s.mutate(id, s.repo.SetTemperature(ctx, id, temperature))
}

// SetLastChatModel remembers the user's selected chat model.
func (s *Service) SetLastChatModel(ctx context.Context, id int64, model string) error {
	return s.mutate(id, s.repo.SetLastChatModel(ctx, id, model))
}

// SetLastImageModel remembers the user's selected image model.
func (s *Service) SetLastImageModel(ctx context.Context, id int64, model string) error {
	return s.mutate(id, s.repo.SetLastImageModel(ctx, id, model))
}

func (s *Service) mutate(id int64, err error) error {
	if err != nil {
		return err
	}
	s.cache.Invalidate(id)
	return nil
}
