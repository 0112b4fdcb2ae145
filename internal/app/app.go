// Package app wires configuration into the stores, external clients and
// services shared by the HTTP server, the MCP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/audit"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/cache"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/database"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/repository"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/rules"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
	"github.com/Cr4zy5h4rk/smart-prior-auth/pkg/external"
)

// HealthCheck names a component probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// App holds every long-lived component built from one configuration.
type App struct {
	Config    *domain.Config
	Logger    *logrus.Logger
	Rules     *rules.Repository
	Store     domain.RequestStore
	Audit     audit.Store
	Generator domain.Generator
	// Extractor is nil when extraction.provider is "none".
	Extractor *service.CachedExtractor
	Intake    *service.IntakeService
	Decisions *service.DecisionService
	Checks    []HealthCheck

	closers []func() error
}

// New builds the application. On error every component built so far is
// closed again.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Rules:  rules.Default(),
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openAudit(); err != nil {
		a.Close()
		return nil, err
	}

	generator, err := external.NewGenerator(cfg.Generator, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	a.Generator = generator

	if err := a.openExtractor(); err != nil {
		a.Close()
		return nil, err
	}

	var extractor domain.DocumentExtractor
	if a.Extractor != nil {
		extractor = a.Extractor
	}
	a.Intake = service.NewIntakeService(logger, a.Store, extractor, a.Rules)
	a.Decisions = service.NewDecisionService(logger, a.Store, a.Generator, a.Rules, cfg.Generator.Params())
	if a.Audit != nil {
		a.Decisions.WithAuditRecorder(a.Audit)
	}

	logger.WithFields(logrus.Fields{
		"store":      cfg.Database.Driver,
		"audit":      cfg.Audit.Driver,
		"generator":  a.Generator.Name(),
		"extraction": cfg.Extraction.Provider,
	}).Info("Application components initialized")

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	switch cfg.Driver {
	case "sqlite":
		store, err := repository.NewSQLiteRequestStore(cfg.SQLitePath, a.Logger)
		if err != nil {
			return fmt.Errorf("opening request store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		a.Checks = append(a.Checks, HealthCheck{Name: "request_store", Check: store.Health})
		return nil

	case "postgres", "":
		dbConfig := database.ConfigFromDomain(cfg)
		if cfg.AutoMigrate {
			if err := Migrate(ctx, dbConfig.URL(), cfg.MigrationsPath, a.Logger); err != nil {
				return err
			}
		}
		db, err := database.NewConnection(ctx, dbConfig, a.Logger)
		if err != nil {
			return fmt.Errorf("connecting to request store: %w", err)
		}
		a.Store = repository.NewRequestRepository(db.Pool, a.Logger)
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.Checks = append(a.Checks, HealthCheck{Name: "request_store", Check: db.Health})
		return nil

	default:
		return fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}
}

func (a *App) openAudit() error {
	switch a.Config.Audit.Driver {
	case "none":
		return nil
	case "sqlite", "":
		store, err := audit.NewSQLiteStore(a.Config.Audit.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		a.Audit = store
	case "postgres":
		store, err := audit.NewPostgresStoreFromURL(database.ConfigFromDomain(a.Config.Database).URL())
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		a.Audit = store
	default:
		return fmt.Errorf("unknown audit driver: %q", a.Config.Audit.Driver)
	}
	a.closers = append(a.closers, a.Audit.Close)
	return nil
}

func (a *App) openExtractor() error {
	extractor, err := external.NewExtractor(a.Config.Extraction, a.Logger)
	if err != nil {
		return fmt.Errorf("creating document extractor: %w", err)
	}
	if extractor == nil {
		return nil
	}

	cacheCfg := a.Config.Cache
	memory := cache.NewMemoryCache(cacheCfg.MemoryMaxSize, cacheCfg.MemoryTTL)

	// Redis is optional; without it only the memory tier is used.
	var redis external.ExtractionCache
	if cacheCfg.RedisURL != "" {
		client, err := external.NewCacheClient(cacheCfg)
		if err != nil {
			a.Logger.WithError(err).Warn("Redis unavailable, using in-memory extraction cache only")
		} else {
			redis = client
			a.closers = append(a.closers, client.Close)
			a.Checks = append(a.Checks, HealthCheck{Name: "redis", Check: client.Ping})
		}
	}

	ttl := a.Config.Extraction.CacheTTL
	if ttl == 0 {
		ttl = cacheCfg.DefaultTTL
	}
	a.Extractor = service.NewCachedExtractor(extractor, memory, redis, ttl, a.Logger)
	return nil
}

// Migrate applies all pending PostgreSQL migrations.
func Migrate(ctx context.Context, databaseURL, migrationsPath string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if err := runner.Up(ctx); err != nil {
		return err
	}
	return nil
}

// Close releases every component in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
