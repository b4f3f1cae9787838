package plugin

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/liamcoop/cartagen/internal/logger"
)

// Manager hands out validated packs, loading each plugin at most once per
// cache lifetime even under concurrent demand.
type Manager struct {
	provider Provider
	cache    Cache
	group    singleflight.Group
}

// NewManager creates a manager. A nil cache means an in-memory cache
// without expiry.
func NewManager(provider Provider, cache Cache) *Manager {
	if cache == nil {
		cache = NewInMemoryCache(DefaultCacheConfig())
	}
	return &Manager{provider: provider, cache: cache}
}

// Get returns the pack for pluginID, loading and validating it on a miss.
func (m *Manager) Get(ctx context.Context, pluginID string) (*Pack, error) {
	if pack, ok := m.cache.Get(ctx, pluginID); ok {
		return pack, nil
	}

	v, err, shared := m.group.Do(pluginID, func() (any, error) {
		// A concurrent caller may have filled the cache while we queued.
		if pack, ok := m.cache.Get(ctx, pluginID); ok {
			return pack, nil
		}
		pack, err := m.provider.Load(ctx, pluginID)
		if err != nil {
			return nil, err
		}
		if err := ValidatePack(pack); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", pluginID, err)
		}
		m.cache.Set(ctx, pack)
		logger.Info("plugin loaded",
			"plugin_id", pluginID,
			"fields", pack.Fields.Fields.Len(),
			"rules", pack.Logic.Rules.Len(),
			"decisions", pack.DecisionMap.Decisions.Len())
		return pack, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("plugin load shared", "plugin_id", pluginID)
	}
	return v.(*Pack), nil
}

// Invalidate drops a cached pack so the next Get reloads it.
func (m *Manager) Invalidate(ctx context.Context, pluginID string) {
	m.cache.Invalidate(ctx, pluginID)
	m.group.Forget(pluginID)
}

// ListPlugins returns the ids the provider knows about.
func (m *Manager) ListPlugins(ctx context.Context) ([]string, error) {
	return m.provider.List(ctx)
}
