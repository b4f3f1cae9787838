package plugin

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/cartagen/internal/logger"
)

// RedisCache shares decoded packs between processes. Packs are stored as
// JSON under "<prefix><plugin_id>". Redis failures are logged and treated
// as cache misses so generation keeps working against the provider.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	config CacheConfig
}

// NewRedisCache creates a cache over client.
func NewRedisCache(client redis.UniversalClient, prefix string, config CacheConfig) *RedisCache {
	if prefix == "" {
		prefix = "cartagen:plugin:"
	}
	return &RedisCache{client: client, prefix: prefix, config: config}
}

// Get fetches and decodes a pack.
func (c *RedisCache) Get(ctx context.Context, pluginID string) (*Pack, bool) {
	raw, err := c.client.Get(ctx, c.prefix+pluginID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("redis cache get failed", "plugin_id", pluginID, "error", err)
		return nil, false
	}
	var pack Pack
	if err := json.Unmarshal(raw, &pack); err != nil {
		logger.Warn("discarding undecodable cached pack", "plugin_id", pluginID, "error", err)
		c.Invalidate(ctx, pluginID)
		return nil, false
	}
	return &pack, true
}

// Set encodes and stores a pack with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, pack *Pack) {
	if pack == nil {
		return
	}
	raw, err := json.Marshal(pack)
	if err != nil {
		logger.Warn("failed to encode pack for cache", "plugin_id", pack.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+pack.ID, raw, c.config.TTL).Err(); err != nil {
		logger.Warn("redis cache set failed", "plugin_id", pack.ID, "error", err)
	}
}

// Invalidate deletes the cached pack.
func (c *RedisCache) Invalidate(ctx context.Context, pluginID string) {
	if err := c.client.Del(ctx, c.prefix+pluginID).Err(); err != nil {
		logger.Warn("redis cache invalidate failed", "plugin_id", pluginID, "error", err)
	}
}
