package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "PORT", "PLUGINS_DIR", "OUTPUT_DIR", "REDIS_ADDR", "CONFIG_CACHE_TTL", "CONFIG_SOURCE"} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Port:       "8080",
		PluginsDir: "config/plugins",
		OutputDir:  "output",
		Source:     SourceFS,
	}, cfg)
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "postgres source",
			env:  map[string]string{"CONFIG_SOURCE": "Postgres", "DATABASE_URL": "postgres://x", "CONFIG_CACHE_TTL": "5m"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, SourcePostgres, cfg.Source)
				assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
			},
		},
		{name: "postgres without url", env: map[string]string{"CONFIG_SOURCE": "postgres"}, wantErr: true},
		{name: "unknown source", env: map[string]string{"CONFIG_SOURCE": "s3"}, wantErr: true},
		{name: "bad ttl", env: map[string]string{"CONFIG_CACHE_TTL": "soon"}, wantErr: true},
		{name: "negative ttl", env: map[string]string{"CONFIG_CACHE_TTL": "-1s"}, wantErr: true},
		{
			name: "overrides",
			env:  map[string]string{"PORT": "9000", "PLUGINS_DIR": "/etc/plugins", "OUTPUT_DIR": "/tmp/out", "REDIS_ADDR": "localhost:6379"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "9000", cfg.Port)
				assert.Equal(t, "/etc/plugins", cfg.PluginsDir)
				assert.Equal(t, "/tmp/out", cfg.OutputDir)
				assert.Equal(t, "localhost:6379", cfg.RedisAddr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := FromEnv()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("PORT")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=7070\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}

func TestManagerFromFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "carta"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "carta", "manifest.yaml"), []byte("name: Carta\n"), 0o644))

	cfg := Config{PluginsDir: dir, Source: SourceFS}
	m, closeFn, err := cfg.Manager(context.Background())
	require.NoError(t, err)
	defer closeFn()

	ids, err := m.ListPlugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"carta"}, ids)

	pack, err := m.Get(context.Background(), "carta")
	require.NoError(t, err)
	assert.Equal(t, "Carta", pack.Manifest.Name)
}
