package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewManagerFromFile_Defaults(t *testing.T) {
	m, err := NewManagerFromFile(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "openai", m.GetGeneratorConfig().Provider)
	assert.Equal(t, 512, cfg.Generator.MaxTokens)
	assert.InDelta(t, 0.1, cfg.Generator.Temperature, 1e-6)
	assert.InDelta(t, 0.8, cfg.Generator.TopP, 1e-6)
	assert.Equal(t, 30*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, 10*1024*1024, cfg.Extraction.MaxBytes)
	assert.Equal(t, "test", cfg.Environment)
	assert.False(t, m.IsProduction())
	assert.NoError(t, m.Validate())
}

func TestNewManagerFromFile_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/requests.db
generator:
  provider: static
  max_tokens: 256
`)
	t.Setenv("PRIOR_AUTH_GENERATOR_MAX_TOKENS", "1024")
	t.Setenv("PRIOR_AUTH_ENVIRONMENT", "production")

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, "sqlite", m.GetDatabaseConfig().Driver)
	assert.Equal(t, "static", cfg.Generator.Provider)
	assert.Equal(t, 1024, cfg.Generator.MaxTokens)
	assert.True(t, m.IsProduction())
	assert.NoError(t, m.Validate())
}

func TestNewManagerFromFile_Malformed(t *testing.T) {
	_, err := NewManagerFromFile(writeConfig(t, "server: [unterminated\n"))
	assert.Error(t, err)
}

func TestManager_Reload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	m, err := NewManagerFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, m.GetServerConfig().Port)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0644))
	require.NoError(t, m.Reload())
	assert.Equal(t, 9100, m.GetServerConfig().Port)
}

func validConfig() *domain.Config {
	return &domain.Config{
		Server:     domain.ServerConfig{Port: 8080},
		Database:   domain.DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, Database: "prior_auth", Username: "postgres"},
		Generator:  domain.GeneratorConfig{Provider: "openai", MaxTokens: 512, Temperature: 0.1, TopP: 0.8},
		Extraction: domain.ExtractionConfig{Provider: "none"},
		RateLimit:  domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 10, Burst: 20},
		Audit:      domain.AuditConfig{Driver: "sqlite"},
		Logging:    domain.LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{"valid", func(*domain.Config) {}, ""},
		{"port out of range", func(c *domain.Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"unknown store driver", func(c *domain.Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"postgres without host", func(c *domain.Config) { c.Database.Host = "" }, "database host is required"},
		{"postgres without name", func(c *domain.Config) { c.Database.Database = "" }, "database name is required"},
		{"postgres without user", func(c *domain.Config) { c.Database.Username = "" }, "database username is required"},
		{"sqlite skips postgres fields", func(c *domain.Config) {
			c.Database = domain.DatabaseConfig{Driver: "sqlite", SQLitePath: "requests.db"}
		}, ""},
		{"sqlite without path", func(c *domain.Config) {
			c.Database = domain.DatabaseConfig{Driver: "sqlite"}
		}, "sqlite_path is required"},
		{"unknown generator", func(c *domain.Config) { c.Generator.Provider = "claude" }, "unknown generator provider"},
		{"zero max tokens", func(c *domain.Config) { c.Generator.MaxTokens = 0 }, "max_tokens"},
		{"top_p above one", func(c *domain.Config) { c.Generator.TopP = 1.5 }, "sampling parameters"},
		{"http extractor without url", func(c *domain.Config) { c.Extraction.Provider = "http" }, "base_url is required"},
		{"unknown audit driver", func(c *domain.Config) { c.Audit.Driver = "s3" }, "unknown audit driver"},
		{"zero rate when enabled", func(c *domain.Config) { c.RateLimit.RequestsPerSecond = 0 }, "requests_per_second"},
		{"rate limiting disabled", func(c *domain.Config) {
			c.RateLimit = domain.RateLimitConfig{Enabled: false}
		}, ""},
		{"invalid log level", func(c *domain.Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = NewLogger(domain.LoggingConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "prior-auth.log")
	logger, err := NewLogger(domain.LoggingConfig{Level: "info", Output: path})
	require.NoError(t, err)

	logger.Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
