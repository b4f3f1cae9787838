package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/liamcoop/cartagen/internal/logger"
	"github.com/liamcoop/cartagen/plugin"

	_ "github.com/lib/pq"
)

func main() {
	var databaseURL string
	var migrationsPath string
	var command string
	var pluginsDir string

	flag.StringVar(&databaseURL, "database", "", "Database URL (default $DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force, seed")
	flag.StringVar(&pluginsDir, "plugins", "", "Plugin directory to copy into the database (seed; default $PLUGINS_DIR)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatal("failed to read .env", "error", err)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		logger.Fatal("database URL is required: use -database or DATABASE_URL")
	}

	if command == "seed" {
		if pluginsDir == "" {
			pluginsDir = os.Getenv("PLUGINS_DIR")
		}
		if pluginsDir == "" {
			pluginsDir = "config/plugins"
		}
		n, err := seed(context.Background(), databaseURL, pluginsDir)
		if err != nil {
			logger.Fatal("seed failed", "error", err)
		}
		logger.Info("seed completed", "plugins", n, "dir", pluginsDir)
		return
	}

	logger.Info("connecting to database", "migrations", migrationsPath)
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		logger.Fatal("failed to create migration instance", "error", err)
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run, database is up to date")
			return
		}
		if err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
		logger.Info("migrations completed")

	case "down":
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to roll back migrations", "error", err)
		}
		logger.Info("rollback completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal("failed to get version", "error", err)
		}
		logger.Info("current version", "version", version, "dirty", dirty)

	case "force":
		if len(flag.Args()) < 1 {
			logger.Fatal("force requires a version number: -command force <version>")
		}
		var version int
		if _, err := fmt.Sscanf(flag.Arg(0), "%d", &version); err != nil {
			logger.Fatal("invalid version number", "error", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatal("failed to force version", "error", err)
		}
		logger.Info("forced version", "version", version)

	default:
		logger.Fatal("unknown command (use: up, down, version, force, seed)", "command", command)
	}
}

// seed loads every plugin under dir, validates it and upserts its documents.
func seed(ctx context.Context, databaseURL, dir string) (int, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	source := plugin.NewFSProvider(dir)
	target := plugin.NewPostgresProvider(db, dir)

	ids, err := source.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		pack, err := source.Load(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := plugin.ValidatePack(pack); err != nil {
			return 0, fmt.Errorf("plugin %s: %w", id, err)
		}
		if err := target.SavePack(ctx, pack); err != nil {
			return 0, err
		}
		logger.Info("plugin seeded", "plugin_id", id)
	}
	return len(ids), nil
}
