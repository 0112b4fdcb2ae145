// Package cli implements the priorauth command-line tool.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/api"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/app"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/config"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

var (
	cfgFile  string
	fullMode bool
	verbose  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "priorauth",
	Short: "Prior authorization decision tooling",
	Long: `priorauth evaluates prior-authorization requests against insurer rules
and manages the request store, the decision audit trail and MCP client setup.

Without --config or --full it runs standalone: requests and the audit trail
are kept in SQLite files under $PRIOR_AUTH_DATA_DIR (default ~/.smart-prior-auth).`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "priorauth v%s\n", api.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (implies --full)")
	rootCmd.PersistentFlags().BoolVar(&fullMode, "full", false, "load configuration from config search paths and PRIOR_AUTH_* env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the configuration for the selected mode.
func loadConfig() (*domain.Config, error) {
	var cfg *domain.Config

	switch {
	case cfgFile != "" || fullMode:
		var (
			manager *config.Manager
			err     error
		)
		if cfgFile != "" {
			manager, err = config.NewManagerFromFile(cfgFile)
		} else {
			manager, err = config.NewManager()
		}
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		if err := manager.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = manager.GetConfig()

	default:
		lite := config.LoadLiteConfig()
		if err := lite.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		cfg = lite.ToConfig()
	}

	// stdout carries command output
	cfg.Logging.Output = "stderr"
	if verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}
