package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// PRIOR_AUTH_DATABASE_HOST for database.host.
const EnvPrefix = "PRIOR_AUTH"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// NewManager creates a new configuration manager that searches the default
// config paths.
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile loads an explicit config file. An empty path falls back
// to the search paths.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig merges defaults, the config file and environment overrides.
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/smart-prior-auth/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "45s")
	v.SetDefault("server.tls_enabled", false)
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")

	// Request store defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sqlite_path", "data/requests.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "prior_auth")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", false)

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.memory_max_size", 1000)
	v.SetDefault("cache.memory_ttl", "15m")

	// Generator defaults
	v.SetDefault("generator.provider", "openai")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", "")
	v.SetDefault("generator.region", "us-east-1")
	v.SetDefault("generator.max_tokens", 512)
	v.SetDefault("generator.temperature", 0.1)
	v.SetDefault("generator.top_p", 0.8)
	v.SetDefault("generator.timeout", "30s")
	v.SetDefault("generator.rate_limit", 5)
	v.SetDefault("generator.static_response", "")

	// Extraction defaults
	v.SetDefault("extraction.provider", "none")
	v.SetDefault("extraction.base_url", "")
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.timeout", "30s")
	v.SetDefault("extraction.max_bytes", 10*1024*1024)
	v.SetDefault("extraction.rate_limit", 5)
	v.SetDefault("extraction.cache_ttl", "24h")

	// Inbound rate limiting
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.idle_expiry", "10m")

	// Audit defaults
	v.SetDefault("audit.driver", "sqlite")
	v.SetDefault("audit.sqlite_path", "data/audit.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "smart-prior-auth")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.request_timeout", "60s")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetGeneratorConfig returns the generative client configuration
func (m *Manager) GetGeneratorConfig() *domain.GeneratorConfig {
	return &m.config.Generator
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

var (
	validLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true, "panic": true,
	}
	validGenerators  = map[string]bool{"openai": true, "titan": true, "static": true}
	validExtractors  = map[string]bool{"http": true, "static": true, "none": true, "": true}
	validStores      = map[string]bool{"postgres": true, "sqlite": true}
	validAuditStores = map[string]bool{"postgres": true, "sqlite": true, "none": true}
)

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a loaded configuration.
func Validate(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	db := config.Database
	if !validStores[db.Driver] {
		return fmt.Errorf("unknown database driver: %q", db.Driver)
	}
	if db.Driver == "postgres" {
		if db.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if db.Port <= 0 || db.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", db.Port)
		}
		if db.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if db.Username == "" {
			return fmt.Errorf("database username is required")
		}
	} else if db.SQLitePath == "" {
		return fmt.Errorf("database sqlite_path is required for the sqlite driver")
	}

	gen := config.Generator
	if !validGenerators[gen.Provider] {
		return fmt.Errorf("unknown generator provider: %q", gen.Provider)
	}
	if gen.MaxTokens <= 0 {
		return fmt.Errorf("generator max_tokens must be positive: %d", gen.MaxTokens)
	}
	if gen.Temperature < 0 || gen.TopP <= 0 || gen.TopP > 1 {
		return fmt.Errorf("invalid generator sampling parameters: temperature=%v top_p=%v", gen.Temperature, gen.TopP)
	}

	ext := config.Extraction
	if !validExtractors[ext.Provider] {
		return fmt.Errorf("unknown extraction provider: %q", ext.Provider)
	}
	if ext.Provider == "http" && ext.BaseURL == "" {
		return fmt.Errorf("extraction base_url is required for the http provider")
	}

	if !validAuditStores[config.Audit.Driver] {
		return fmt.Errorf("unknown audit driver: %q", config.Audit.Driver)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit requests_per_second must be positive when enabled")
	}

	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.EqualFold(m.config.Environment, "production")
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
