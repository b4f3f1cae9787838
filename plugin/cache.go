package plugin

import (
	"context"
	"sync"
	"time"
)

// Cache provides an abstraction for caching loaded packs.
// This allows swapping between in-memory, Redis, or other caching implementations.
type Cache interface {
	// Get retrieves a cached pack, returns false on a miss or expiry
	Get(ctx context.Context, pluginID string) (*Pack, bool)

	// Set stores a pack in the cache
	Set(ctx context.Context, pack *Pack)

	// Invalidate drops one pack, forcing a reload on next Get
	Invalidate(ctx context.Context, pluginID string)
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults for pack caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // packs are immutable files; invalidate explicitly
	}
}

type cacheEntry struct {
	pack     *Pack
	cachedAt time.Time
}

// InMemoryCache is a simple in-memory implementation of Cache.
// Thread-safe for concurrent access.
type InMemoryCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
	now     func() time.Time
}

// NewInMemoryCache creates a new in-memory pack cache
func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get retrieves a cached pack.
// Returns false if the entry is missing or expired.
func (c *InMemoryCache) Get(_ context.Context, pluginID string) (*Pack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[pluginID]
	if !ok {
		return nil, false
	}

	// Check TTL if configured
	if c.config.TTL > 0 && c.now().Sub(entry.cachedAt) > c.config.TTL {
		return nil, false
	}

	return entry.pack, true
}

// Set stores a pack in the cache
func (c *InMemoryCache) Set(_ context.Context, pack *Pack) {
	if pack == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[pack.ID] = cacheEntry{pack: pack, cachedAt: c.now()}
}

// Invalidate removes one pack
func (c *InMemoryCache) Invalidate(_ context.Context, pluginID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, pluginID)
}
