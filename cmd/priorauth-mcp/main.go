// Command priorauth-mcp serves the prior authorization tools over MCP stdio.
// It needs no external database: requests and the audit trail live in SQLite
// files under PRIOR_AUTH_DATA_DIR.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/app"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/config"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/mcp"
)

func main() {
	lite := config.LoadLiteConfig()
	if err := lite.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	cfg := lite.ToConfig()
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
	defer application.Close()

	logger.WithField("data_dir", lite.DataDir).Info("Starting prior authorization MCP server")

	server := mcp.NewServer(cfg.MCP, mcp.Dependencies{
		Decisions: application.Decisions,
		Store:     application.Store,
		Rules:     application.Rules,
	}, logger)

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("MCP server stopped")
}
