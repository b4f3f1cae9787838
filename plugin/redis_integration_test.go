//go:build integration
// +build integration

package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/liamcoop/cartagen/dsl"
)

func setupRedis(t testing.TB) *redis.Client {
	ctx := context.Background()

	container, err := redisContainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint, DB: 1})
	_, err = client.Ping(ctx).Result()
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cache := NewRedisCache(client, "test:", CacheConfig{TTL: time.Minute})

	_, ok := cache.Get(ctx, "carta")
	assert.False(t, ok)

	pack := &Pack{ID: "carta"}
	pack.Fields.Fields.Set("zeta", &FieldSpec{Type: FieldText})
	pack.Fields.Fields.Set("alfa", &FieldSpec{Type: FieldBool, Condition: &dsl.Condition{Expression: "zeta == 'x'"}})
	cache.Set(ctx, pack)

	got, ok := cache.Get(ctx, "carta")
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alfa"}, got.Fields.Fields.Keys())
	assert.Equal(t, "zeta == 'x'", got.Field("alfa").Condition.Expression)

	ttl, err := client.TTL(ctx, "test:carta").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	cache.Invalidate(ctx, "carta")
	_, ok = cache.Get(ctx, "carta")
	assert.False(t, ok)
}

func TestRedisCacheDropsCorruptEntries(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cache := NewRedisCache(client, "", DefaultCacheConfig())

	require.NoError(t, client.Set(ctx, "cartagen:plugin:carta", "{not json", 0).Err())
	_, ok := cache.Get(ctx, "carta")
	assert.False(t, ok)

	n, err := client.Exists(ctx, "cartagen:plugin:carta").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManagerWithRedisCache(t *testing.T) {
	client := setupRedis(t)
	provider := &countingProvider{packs: map[string]*Pack{"carta": {ID: "carta"}}}
	m := NewManager(provider, NewRedisCache(client, "mgr:", DefaultCacheConfig()))
	ctx := context.Background()

	_, err := m.Get(ctx, "carta")
	require.NoError(t, err)
	_, err = m.Get(ctx, "carta")
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.loads.Load())
}
