package cache

import (
	"context"
	"sync"
	"time"

	billingapp "github.com/gestloc/backend/internal/application/billing"
)

// InMemoryStatsCache implements the billing StatsCache with a local map.
// Suitable for single-instance deployments and tests. Expired entries
// are dropped lazily on read.
type InMemoryStatsCache struct {
	mu      sync.RWMutex
	entries map[string]statsEntry
}

type statsEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryStatsCache creates an empty in-memory stats cache
func NewInMemoryStatsCache() *InMemoryStatsCache {
	return &InMemoryStatsCache{
		entries: make(map[string]statsEntry),
	}
}

// Get returns the cached payload for key, or ok=false on a miss
func (c *InMemoryStatsCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores the payload under key with the given TTL
func (c *InMemoryStatsCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = statsEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Delete removes the payload under key
func (c *InMemoryStatsCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

var _ billingapp.StatsCache = (*InMemoryStatsCache)(nil)
