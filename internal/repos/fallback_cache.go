package repos

import (
	"sync"
	"time"

	"aurelia/internal/domain"
)

// FallbackCache keeps the last known list items per (user, kind) in process
// memory so reads survive a remote-store outage. Entries expire lazily.
type FallbackCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]fallbackEntry
}

type fallbackEntry struct {
	items   []domain.LineItem
	expires time.Time
}

func NewFallbackCache(ttl time.Duration) *FallbackCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &FallbackCache{ttl: ttl, m: map[string]fallbackEntry{}}
}

func fallbackKey(userID string, kind domain.ListKind) string {
	return userID + "|" + string(kind)
}

func (c *FallbackCache) Put(userID string, kind domain.ListKind, items []domain.LineItem) {
	cp := make([]domain.LineItem, len(items))
	copy(cp, items)
	c.mu.Lock()
	c.m[fallbackKey(userID, kind)] = fallbackEntry{items: cp, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *FallbackCache) Get(userID string, kind domain.ListKind) ([]domain.LineItem, bool) {
	c.mu.RLock()
	e, ok := c.m[fallbackKey(userID, kind)]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	cp := make([]domain.LineItem, len(e.items))
	copy(cp, e.items)
	return cp, true
}

func (c *FallbackCache) Drop(userID string, kind domain.ListKind) {
	c.mu.Lock()
	delete(c.m, fallbackKey(userID, kind))
	c.mu.Unlock()
}
