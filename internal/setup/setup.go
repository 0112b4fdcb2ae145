// Package setup registers the MCP stdio server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	// ServerName is the key used in the client's mcpServers map.
	ServerName = "smart-prior-auth"
	// BinaryName is the MCP stdio server executable.
	BinaryName = "priorauth-mcp"
	// DataDirEnv is passed to the server to locate its SQLite files.
	DataDirEnv = "PRIOR_AUTH_DATA_DIR"
)

// ClientConfig is the desktop client configuration file structure. Keys the
// client owns besides mcpServers are preserved on save.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`

	extra map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server entry.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls how the server entry is written.
type Options struct {
	ConfigPath string
	BinaryPath string
	DataDir    string
	Env        map[string]string
}

// Status describes the current registration.
type Status struct {
	ConfigPath   string   `json:"config_path"`
	Configured   bool     `json:"configured"`
	BinaryPath   string   `json:"binary_path,omitempty"`
	BinaryExists bool     `json:"binary_exists"`
	DataDir      string   `json:"data_dir"`
	Issues       []string `json:"issues"`
}

// DefaultConfigPath returns the Claude Desktop configuration path for the
// current platform.
func DefaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// DefaultDataDir returns the data directory used by the stdio server when
// none is configured.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".smart-prior-auth")
}

// LoadClientConfig reads the client configuration. A missing file yields an
// empty configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: make(map[string]MCPServerConfig)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}
	return cfg, nil
}

// SaveClientConfig writes the configuration, creating its directory.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Configure adds or replaces the server entry and returns it.
func Configure(opts Options) (*MCPServerConfig, error) {
	if opts.ConfigPath == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		opts.ConfigPath = path
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		found, err := FindBinary()
		if err != nil {
			return nil, fmt.Errorf("could not find server binary: %w", err)
		}
		binaryPath = found
	}

	cfg, err := LoadClientConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	entry := MCPServerConfig{
		Command: binaryPath,
		Env:     make(map[string]string, len(opts.Env)+1),
	}
	for k, v := range opts.Env {
		entry.Env[k] = v
	}
	if opts.DataDir != "" {
		entry.Env[DataDirEnv] = opts.DataDir
	}
	if len(entry.Env) == 0 {
		entry.Env = nil
	}

	cfg.MCPServers[ServerName] = entry
	if err := SaveClientConfig(opts.ConfigPath, cfg); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Remove deletes the server entry. It reports whether an entry existed.
func Remove(configPath string) (bool, error) {
	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, SaveClientConfig(configPath, cfg)
}

// FindBinary looks for the stdio server on PATH and in common build
// locations.
func FindBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary %q not found in common locations", BinaryName)
}

// GetStatus inspects the registration in the given client configuration.
func GetStatus(configPath string) (*Status, error) {
	status := &Status{ConfigPath: configPath, Issues: []string{}}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.MCPServers[ServerName]
	if ok {
		status.Configured = true
		status.BinaryPath = entry.Command
		status.DataDir = entry.Env[DataDirEnv]

		info, err := os.Stat(entry.Command)
		switch {
		case err != nil:
			status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
		case info.Mode()&0111 == 0:
			status.BinaryExists = true
			status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
		default:
			status.BinaryExists = true
		}
	} else {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered", ServerName))
	}

	if status.DataDir == "" {
		status.DataDir = DefaultDataDir()
	}
	return status, nil
}
