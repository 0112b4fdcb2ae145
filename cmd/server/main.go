package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/api"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/app"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/config"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Error("Failed to close application")
		}
	}()

	checks := make([]api.HealthCheck, 0, len(application.Checks))
	for _, c := range application.Checks {
		checks = append(checks, api.HealthCheck{Name: c.Name, Check: c.Check})
	}

	server := api.NewServer(configManager, api.Dependencies{
		Intake:          application.Intake,
		Decisions:       application.Decisions,
		Store:           application.Store,
		Rules:           application.Rules,
		ExtractionCache: application.Extractor,
		Checks:          checks,
	}, logger)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"version": api.Version,
	}).Info("Starting prior authorization API")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
