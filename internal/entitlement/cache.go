package entitlement

import (
	"sync"
	"time"

	"miniarima/internal/domain"
)

// Cache is a bounded, time-expiring shadow of account rows keyed by user
// id. Get, Put and Invalidate are the only mutation surface; storage stays
// the source of truth and every account write must invalidate here.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[int64]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	account   domain.Account
	expiresAt time.Time
}

// NewCache builds a cache holding at most max entries, each valid for ttl.
func NewCache(max int, ttl time.Duration) *Cache {
	if max <= 0 {
		max = 1024
	}
	return &Cache{
		ttl:     ttl,
		max:     max,
		entries: make(map[int64]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the cached account, or false on miss or expiry.
func (c *Cache) Get(id int64) (*domain.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, id)
		return nil, false
	}
	account := entry.account
	return &account, true
}

// Put stores a copy of the account. When full, expired entries are dropped
// first; if none have expired an arbitrary entry is evicted to stay bounded.
func (c *Cache) Put(id int64, account *domain.Account) {
	if account == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.max {
		c.evictLocked()
	}
	c.entries[id] = cacheEntry{account: *account, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops the entry for one user.
func (c *Cache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			return
		}
	}
	for id := range c.entries {
		delete(c.entries, id)
		return
	}
}
