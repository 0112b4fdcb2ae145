package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/config"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/database"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage PostgreSQL schema migrations",
	Long: `Apply or roll back the request store migrations.

Migrations only apply to the PostgreSQL request store, so they need
--config or --full. SQLite stores create their schema on open.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newMigrationRunner()
		if err != nil {
			return err
		}
		defer runner.Close()

		if err := runner.Up(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, runner)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newMigrationRunner()
		if err != nil {
			return err
		}
		defer runner.Close()

		if err := runner.Down(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, runner)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newMigrationRunner()
		if err != nil {
			return err
		}
		defer runner.Close()
		return printVersion(cmd, runner)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: database.migrations_path)")
}

func newMigrationRunner() (*database.MigrationRunner, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("migrations need the postgres request store, configured driver is %q", cfg.Database.Driver)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	path := migrationsPath
	if path == "" {
		path = cfg.Database.MigrationsPath
	}
	return database.NewMigrationRunner(database.ConfigFromDomain(cfg.Database).URL(), path, logger)
}

func printVersion(cmd *cobra.Command, runner *database.MigrationRunner) error {
	version, dirty, err := runner.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
