package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/setup"
)

var (
	setupConfigPath string
	setupBinary     string
	setupDataDir    string
	setupGenerator  string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register the MCP server with Claude Desktop",
}

var setupInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Add or update the MCP server entry",
	Long: `Install writes a mcpServers entry pointing at the priorauth-mcp binary.
Restart the desktop client afterwards to load it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveClientConfigPath()
		if err != nil {
			return err
		}

		opts := setup.Options{
			ConfigPath: path,
			BinaryPath: setupBinary,
			DataDir:    setupDataDir,
		}
		if setupGenerator != "" {
			opts.Env = map[string]string{"PRIOR_AUTH_GENERATOR_PROVIDER": setupGenerator}
		}

		entry, err := setup.Configure(opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s in %s\n  command: %s\n", setup.ServerName, path, entry.Command)
		return nil
	},
}

var setupStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveClientConfigPath()
		if err != nil {
			return err
		}
		status, err := setup.GetStatus(path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(status.DataDir); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("data directory will be created on first run: %s", status.DataDir))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

var setupRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the MCP server entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveClientConfigPath()
		if err != nil {
			return err
		}
		removed, err := setup.Remove(path)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s was not registered\n", setup.ServerName)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", setup.ServerName, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.AddCommand(setupInstallCmd, setupStatusCmd, setupRemoveCmd)

	setupCmd.PersistentFlags().StringVar(&setupConfigPath, "client-config", "", "client config file (default: platform Claude Desktop path)")
	setupInstallCmd.Flags().StringVar(&setupBinary, "binary", "", "path to priorauth-mcp (default: search PATH)")
	setupInstallCmd.Flags().StringVar(&setupDataDir, "data-dir", "", "data directory passed to the server")
	setupInstallCmd.Flags().StringVar(&setupGenerator, "generator", "", "generator provider passed to the server")
}

func resolveClientConfigPath() (string, error) {
	if setupConfigPath != "" {
		return setupConfigPath, nil
	}
	return setup.DefaultConfigPath()
}
