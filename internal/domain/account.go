package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tier enumerates subscription levels in ascending order of entitlement.
type Tier int

const (
	TierFree Tier = iota
	TierStandard
	TierPremium
	TierMax
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierStandard:
		return "standard"
	case TierPremium:
		return "premium"
	case TierMax:
		return "max"
	default:
		return "unknown"
	}
}

// ParseTier maps a tier name to its enum value.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TierFree, nil
	case "standard":
		return TierStandard, nil
	case "premium":
		return TierPremium, nil
	case "max":
		return TierMax, nil
	default:
		return TierFree, fmt.Errorf("unknown tier %q: %w", s, ErrValidation)
	}
}

// Account represents a registered user of the bot.
type Account struct {
	ID             int64
	Handle         string // lower-cased, optional
	Tier           Tier
	TierExpiry     *time.Time
	Verified       bool
	Blocked        bool
	BonusGranted   bool
	Instruction    string   // custom system instruction override, empty = unset
	Temperature    *float64 // custom sampling temperature, nil = unset
	LastChatModel  string
	LastImageModel string
	CreatedAt      time.Time
}

// TierExpired reports whether a paid tier has lapsed at the given moment.
// Free accounts never expire. A paid tier without an expiry is treated as
// expired: the invariant requires tier > free to carry a future expiry.
func (a *Account) TierExpired(now time.Time) bool {
	if a.Tier == TierFree {
		return false
	}
	if a.TierExpiry == nil {
		return true
	}
	return a.TierExpiry.Before(now)
}

// NormalizeHandle lowers and trims a display handle for case-insensitive
// lookups.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(handle, "@")))
}
