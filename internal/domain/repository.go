package domain

import (
	"context"
	"time"
)

// AccountRepository is the durable authority for accounts. The entitlement
// cache shadows it; every mutation here must be followed by a cache
// invalidation at the call site that owns the cache.
type AccountRepository interface {
	Get(ctx context.Context, id int64) (*Account, error)
	GetByHandle(ctx context.Context, handle string) (*Account, error)
	Upsert(ctx context.Context, id int64, handle string) (*Account, error)
	SetTier(ctx context.Context, id int64, tier Tier, expiry *time.Time) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	SetBonus(ctx context.Context, id int64) error
	SetLastChatModel(ctx context.Context, id int64, model string) error
	SetLastImageModel(ctx context.Context, id int64, model string) error
	SetInstruction(ctx context.Context, id int64, instruction *string) error
	SetTemperature(ctx context.Context, id int64, temperature *float64) error
	TierCounts(ctx context.Context) (map[Tier]int, error)
}

// UsageRepository tracks accepted requests per user, calendar day and kind.
type UsageRepository interface {
	CountToday(ctx context.Context, userID int64, day time.Time, kind UsageKind) (int, error)
	Record(ctx context.Context, userID int64, day time.Time, model string, kind UsageKind) error
}

// SystemRepository stores small named values such as the availability
// snapshot and the rendered health report.
type SystemRepository interface {
	Get(ctx context.Context, key string) (value string, updatedAt time.Time, err error)
	Set(ctx context.Context, key, value string) error
}
