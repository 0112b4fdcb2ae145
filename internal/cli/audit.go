package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/audit"
)

var (
	exportFormat string
	exportOutput string
)

var exporters = map[string]audit.Exporter{
	"json":    audit.ExportJSON,
	"parquet": audit.ExportParquet,
}

var errAuditDisabled = errors.New("the audit trail is disabled (audit.driver is none)")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect, export and import the decision audit trail",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries as JSON or Parquet",
	Long: `Export writes every audit entry, newest first.

Example:
  priorauth audit export --format parquet --output decisions.parquet`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		export, ok := exporters[exportFormat]
		if !ok {
			return fmt.Errorf("unknown export format %q: must be json or parquet", exportFormat)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Audit == nil {
			return errAuditDisabled
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			defer f.Close()
			w = f
		}

		n, err := export(cmd.Context(), a.Audit, w)
		if err != nil {
			return err
		}
		if exportOutput != "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", n, exportOutput)
		}
		return nil
	},
}

var auditImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import audit entries from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Audit == nil {
			return errAuditDisabled
		}

		imported, skipped, err := audit.ImportJSON(cmd.Context(), a.Audit, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries, skipped %d duplicates\n", imported, skipped)
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count decisions and safety overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Audit == nil {
			return errAuditDisabled
		}

		total, err := a.Audit.Count(cmd.Context())
		if err != nil {
			return err
		}
		overrides, err := a.Audit.CountOverrides(cmd.Context())
		if err != nil {
			return err
		}

		rate := 0.0
		if total > 0 {
			rate = float64(overrides) / float64(total) * 100
		}
		fmt.Fprintf(cmd.OutOrStdout(), "decisions: %d\nsafety overrides: %d (%.1f%%)\n", total, overrides, rate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditExportCmd, auditImportCmd, auditStatsCmd)

	auditExportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format (json, parquet)")
	auditExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")
}
