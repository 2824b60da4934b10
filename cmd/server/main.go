package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/api"
	"github.com/trialguard-server/internal/catalog"
	"github.com/trialguard-server/internal/config"
	"github.com/trialguard-server/internal/domain"
	"github.com/trialguard-server/internal/history"
	"github.com/trialguard-server/internal/service"
	"github.com/trialguard-server/pkg/upstream"
)

func main() {
	// Load and validate configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting trial guardrail server")

	// Match history store
	store, err := newHistoryStore(cfg.History, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open match-history store")
	}
	defer store.Close()

	// Trial catalog snapshot
	cat, err := catalog.Load(cfg.Catalog.SnapshotPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load trial catalog")
	}

	// Upstream collaborators with verdict caching
	var remoteCache *upstream.VerdictCache
	if !cfg.Cache.DisableRemote {
		remoteCache, err = upstream.NewVerdictCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, falling back to memory-only verdict cache")
			remoteCache = nil
		}
	}
	collaborators := upstream.NewResilientUpstream(cfg.Upstream, cfg.Cache, remoteCache, logger)
	defer collaborators.Close()

	// Deterministic core
	engine := service.NewGuardrailEngine(logger, cfg.Guardrails)
	matcher := service.NewMatcherService(logger, engine, collaborators, store, cfg.Guardrails.MaxConcurrency)

	server := api.NewServer(cfg, logger, matcher, cat, store, collaborators)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// newHistoryStore opens the configured match-history backend. The
// postgres driver runs migrations first when a migrations path is set.
func newHistoryStore(cfg domain.HistoryConfig, logger *logrus.Logger) (history.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return history.NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		if cfg.MigrationsPath != "" {
			runner, err := history.NewMigrationRunner(cfg.DatabaseURL, cfg.MigrationsPath, logger)
			if err != nil {
				return nil, fmt.Errorf("creating migration runner: %w", err)
			}
			if err := runner.Up(); err != nil {
				runner.Close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			runner.Close()
		}
		return history.OpenPostgresStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("invalid history driver: %s", cfg.Driver)
	}
}
