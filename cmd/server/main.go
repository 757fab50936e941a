package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/fieldmap/internal/config"
	"github.com/JonMunkholm/fieldmap/internal/core"
	_ "github.com/JonMunkholm/fieldmap/internal/core/schemas" // Register all schemas
	"github.com/JonMunkholm/fieldmap/internal/importer"
	"github.com/JonMunkholm/fieldmap/internal/logging"
	"github.com/JonMunkholm/fieldmap/internal/sink"
	"github.com/JonMunkholm/fieldmap/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logFile := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logFile.Close()

	slog.Info("configuration loaded", "config", cfg.String())

	matcher, err := newMatcher(cfg.Import)
	if err != nil {
		slog.Error("invalid import settings", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect the record sink
	records, err := sink.Open(ctx, sink.Config{
		Driver:   cfg.Database.Driver,
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		slog.Error("failed to open sink", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if records != nil {
		defer records.Close()
		slog.Info("sink connected", "driver", cfg.Database.Driver, "table", sink.TableName)
	} else {
		slog.Warn("no sink configured, commits will not be stored")
	}

	store, err := newStore(ctx, cfg.Session)
	if err != nil {
		slog.Error("failed to open session store", "store", cfg.Session.Store, "error", err)
		os.Exit(1)
	}

	opts := importer.Options{
		Store:         store,
		Ingest:        sink.IngestFunc(records),
		Matcher:       matcher,
		Limiter:       importer.NewCommitLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		MaxFileSize:   cfg.Import.MaxFileSize,
		CommitTimeout: cfg.Import.CommitTimeout,
	}
	// Database sinks keep presets next to the records; otherwise they live in memory
	if presets, ok := records.(importer.PresetStore); ok {
		opts.Presets = presets
	}
	service := importer.NewService(opts)

	// Memory sessions are swept by the janitor; Redis expires them by TTL
	var janitor *importer.Janitor
	if _, ok := store.(importer.Sweeper); ok {
		janitor, err = importer.NewJanitor(service, importer.JanitorConfig{
			Schedule:    cfg.Session.SweepSchedule,
			IdleTimeout: cfg.Session.IdleTimeout,
		})
		if err != nil {
			slog.Error("invalid sweep schedule", "error", err)
			os.Exit(1)
		}
		janitor.Start()
	}

	slog.Info("schemas registered", "count", core.SchemaCount())
	for _, s := range core.Schemas() {
		slog.Debug("schema", "entity", s.Entity, "fields", len(s.Fields))
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if janitor != nil {
			janitor.Stop(shutdownCtx)
		}

		// Wait for active commits to complete (with timeout)
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for commits to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("commits did not complete in time", "error", err)
			} else {
				slog.Info("all commits completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// newMatcher builds the auto-mapper from config.
func newMatcher(cfg config.ImportConfig) (core.Matcher, error) {
	strategy, err := core.ParseStrategy(cfg.Strategy)
	if err != nil {
		return core.Matcher{}, err
	}
	return core.Matcher{Threshold: cfg.MatchThreshold, Strategy: strategy}, nil
}

// newStore opens the configured session store.
func newStore(ctx context.Context, cfg config.SessionConfig) (importer.Store, error) {
	if cfg.Store == "redis" {
		store, err := importer.NewRedisStore(ctx, cfg.RedisURL, cfg.IdleTimeout)
		if err != nil {
			return nil, err
		}
		slog.Info("session store connected", "store", "redis", "idle_timeout", cfg.IdleTimeout.String())
		return store, nil
	}
	return importer.NewMemoryStore(), nil
}
