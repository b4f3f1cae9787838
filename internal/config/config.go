// Package config reads process settings from the environment (and an
// optional .env file) and wires the plugin manager they describe.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"

	_ "github.com/lib/pq"
)

// Plugin configuration sources.
const (
	SourceFS       = "fs"
	SourcePostgres = "postgres"
)

// Config holds the settings shared by the commands.
type Config struct {
	DatabaseURL string
	Port        string
	PluginsDir  string
	OutputDir   string
	RedisAddr   string
	CacheTTL    time.Duration
	Source      string
}

// Load reads .env when present and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getenv("PORT", "8080"),
		PluginsDir:  getenv("PLUGINS_DIR", "config/plugins"),
		OutputDir:   getenv("OUTPUT_DIR", "output"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		Source:      strings.ToLower(getenv("CONFIG_SOURCE", SourceFS)),
	}
	if ttl := os.Getenv("CONFIG_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONFIG_CACHE_TTL %q: %w", ttl, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("invalid CONFIG_CACHE_TTL %q: must not be negative", ttl)
		}
		cfg.CacheTTL = d
	}
	switch cfg.Source {
	case SourceFS:
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when CONFIG_SOURCE=%s", SourcePostgres)
		}
	default:
		return Config{}, fmt.Errorf("unknown CONFIG_SOURCE %q (use %s or %s)", cfg.Source, SourceFS, SourcePostgres)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Manager builds the plugin manager for cfg. The returned close function
// releases the database and Redis connections it opened.
func (cfg Config) Manager(ctx context.Context) (*plugin.Manager, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var provider plugin.Provider
	switch cfg.Source {
	case SourcePostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, db.Close)
		provider = plugin.NewPostgresProvider(db, cfg.PluginsDir)
	default:
		provider = plugin.NewFSProvider(cfg.PluginsDir)
	}

	cacheConfig := plugin.CacheConfig{TTL: cfg.CacheTTL}
	var cache plugin.Cache = plugin.NewInMemoryCache(cacheConfig)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = closeAll()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		closers = append(closers, client.Close)
		cache = plugin.NewRedisCache(client, "", cacheConfig)
	}

	logger.Info("plugin manager ready",
		"source", cfg.Source,
		"plugins_dir", cfg.PluginsDir,
		"redis", cfg.RedisAddr != "",
		"cache_ttl", cfg.CacheTTL.String())
	return plugin.NewManager(provider, cache), closeAll, nil
}
