// Package config provides configuration management for the prior
// authorization services. This file holds the env-only configuration used by
// the MCP stdio server and the CLI when no config file or database is around.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// Requests and the audit trail live in SQLite files under DataDir.
type LiteConfig struct {
	DataDir string

	CacheMaxItems int
	CacheTTL      time.Duration

	GeneratorProvider string // openai, titan, static
	GeneratorBaseURL  string
	GeneratorAPIKey   string
	GeneratorModel    string

	ExtractionProvider string // http, static, none
	ExtractionBaseURL  string
	ExtractionAPIKey   string

	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:            filepath.Join(homeDir, ".smart-prior-auth"),
		CacheMaxItems:      1000,
		CacheTTL:           24 * time.Hour,
		GeneratorProvider:  "static",
		ExtractionProvider: "static",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadLiteConfig loads configuration from PRIOR_AUTH_* environment
// variables, falling back to defaults.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	setString(&cfg.DataDir, "PRIOR_AUTH_DATA_DIR")

	if v := os.Getenv("PRIOR_AUTH_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PRIOR_AUTH_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	setString(&cfg.GeneratorProvider, "PRIOR_AUTH_GENERATOR_PROVIDER")
	setString(&cfg.GeneratorBaseURL, "PRIOR_AUTH_GENERATOR_BASE_URL")
	setString(&cfg.GeneratorAPIKey, "PRIOR_AUTH_GENERATOR_API_KEY")
	setString(&cfg.GeneratorModel, "PRIOR_AUTH_GENERATOR_MODEL")

	setString(&cfg.ExtractionProvider, "PRIOR_AUTH_EXTRACTION_PROVIDER")
	setString(&cfg.ExtractionBaseURL, "PRIOR_AUTH_EXTRACTION_BASE_URL")
	setString(&cfg.ExtractionAPIKey, "PRIOR_AUTH_EXTRACTION_API_KEY")

	setString(&cfg.LogLevel, "PRIOR_AUTH_LOG_LEVEL")
	setString(&cfg.LogFormat, "PRIOR_AUTH_LOG_FORMAT")

	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// RequestsDBPath returns the path to the request store SQLite database.
func (c *LiteConfig) RequestsDBPath() string {
	return filepath.Join(c.DataDir, "requests.db")
}

// AuditDBPath returns the path to the audit trail SQLite database.
func (c *LiteConfig) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// ExportDir returns the directory for audit exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration backed by
// SQLite, with logs on stderr so stdout stays free for MCP traffic.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Environment: "standalone",
		Database: domain.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: c.RequestsDBPath(),
		},
		Cache: domain.CacheConfig{
			MemoryMaxSize: c.CacheMaxItems,
			MemoryTTL:     c.CacheTTL,
		},
		Generator: domain.GeneratorConfig{
			Provider:    c.GeneratorProvider,
			BaseURL:     c.GeneratorBaseURL,
			APIKey:      c.GeneratorAPIKey,
			Model:       c.GeneratorModel,
			MaxTokens:   512,
			Temperature: 0.1,
			TopP:        0.8,
			Timeout:     30 * time.Second,
			RateLimit:   5,
		},
		Extraction: domain.ExtractionConfig{
			Provider:  c.ExtractionProvider,
			BaseURL:   c.ExtractionBaseURL,
			APIKey:    c.ExtractionAPIKey,
			Timeout:   30 * time.Second,
			MaxBytes:  10 * 1024 * 1024,
			RateLimit: 5,
			CacheTTL:  c.CacheTTL,
		},
		Audit: domain.AuditConfig{
			Driver:     "sqlite",
			SQLitePath: c.AuditDBPath(),
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		MCP: domain.MCPConfig{
			ServerName:     "smart-prior-auth",
			ServerVersion:  "1.0.0",
			RequestTimeout: 60 * time.Second,
		},
	}
}
