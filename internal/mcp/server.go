// Package mcp exposes the prior-authorization pipeline as MCP tools over
// stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
)

// Dependencies are the services the tools call into.
type Dependencies struct {
	Decisions *service.DecisionService
	Store     domain.RequestStore
	Rules     domain.RuleRepository
}

// Server represents the prior-authorization MCP server
type Server struct {
	config    domain.MCPConfig
	deps      Dependencies
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered
func NewServer(cfg domain.MCPConfig, deps Dependencies, logger *logrus.Logger) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "smart-prior-auth"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "1.0.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	server := &Server{
		config:    cfg,
		deps:      deps,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	server.registerTools()

	return server
}

// Run serves MCP over stdin/stdout until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"server_name":    s.config.ServerName,
		"server_version": s.config.ServerVersion,
	}).Info("Starting prior authorization MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers the pipeline tools
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolEvaluate,
		Description: "Run the full prior-authorization decision pipeline on a request. " +
			"The request is stored first, then categorized, checked against the insurer's rules " +
			"and decided. Rule violations always produce a denial.",
	}, s.handleEvaluate)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCategorize,
		Description: "Map a free-text treatment description (English or French) to its treatment category.",
	}, s.handleCategorize)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolLookupRule,
		Description: "Resolve the insurance rule for an insurer and treatment category, falling back to the insurer's general rule.",
	}, s.handleLookupRule)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCheckCompliance,
		Description: "Extract clinical facts from a request and list rule violations without calling the generation model.",
	}, s.handleCheckCompliance)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolValidateDocument,
		Description: "Check that a base64-encoded document is a PDF, JPEG or PNG under 10MB, with conversion suggestions otherwise.",
	}, s.handleValidateDocument)

	s.logger.WithField("tool_count", len(ToolNames)).Debug("Registered MCP tools")
}
