package entitlement

import (
	"testing"
	"time"

	"miniarima/internal/domain"
)

func TestCacheGetPut(t *testing.T) {
	c := NewCache(8, time.Minute)

	if _, ok := c.Get(1); ok {
		t.Fatal("empty cache must miss")
	}

	c.Put(1, &domain.Account{ID: 1, Tier: domain.TierPremium})
	got, ok := c.Get(1)
	if !ok || got.Tier != domain.TierPremium {
		t.Fatalf("hit = %v, account = %+v", ok, got)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache(8, time.Minute)
	original := &domain.Account{ID: 1, Handle: "original"}
	c.Put(1, original)

	// Mutating either the stored source or a returned copy must not leak
	// into later reads.
	original.Handle = "mutated"
	first, _ := c.Get(1)
	first.Handle = "also mutated"

	second, _ := c.Get(1)
	if second.Handle != "original" {
		t.Fatalf("cache leaked a shared pointer, handle = %q", second.Handle)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(8, time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Put(1, &domain.Account{ID: 1})
	if _, ok := c.Get(1); !ok {
		t.Fatal("fresh entry must hit")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get(1); ok {
		t.Fatal("expired entry must miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be dropped, len = %d", c.Len())
	}
}

func TestCacheBounded(t *testing.T) {
	c := NewCache(3, time.Minute)
	for id := int64(1); id <= 10; id++ {
		c.Put(id, &domain.Account{ID: id})
	}
	if c.Len() > 3 {
		t.Fatalf("cache exceeded its bound, len = %d", c.Len())
	}
}

func TestCacheEvictsExpiredFirst(t *testing.T) {
	c := NewCache(2, time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Put(1, &domain.Account{ID: 1})
	current = current.Add(2 * time.Minute)
	c.Put(2, &domain.Account{ID: 2})
	c.Put(3, &domain.Account{ID: 3})

	if _, ok := c.Get(2); !ok {
		t.Fatal("live entry was evicted while an expired one remained")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatal("new entry missing after eviction")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(8, time.Minute)
	c.Put(1, &domain.Account{ID: 1})
	c.Invalidate(1)
	if _, ok := c.Get(1); ok {
		t.Fatal("invalidated entry must miss")
	}
}
