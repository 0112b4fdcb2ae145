package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
)

var (
	listStatus string
	listLimit  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := service.SeedDemoRequests(cmd.Context(), a.Store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d demo requests\n", created, len(service.DemoRequests()))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored requests, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listLimit < 1 {
			return fmt.Errorf("--limit must be positive")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var requests []*domain.Request
		if listStatus != "" {
			status := domain.RequestStatus(strings.ToLower(listStatus))
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q: must be analyzed or processed", listStatus)
			}
			requests, err = a.Store.ListByStatus(cmd.Context(), status, listLimit)
		} else {
			requests, err = a.Store.ListRecent(cmd.Context(), listLimit)
		}
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tINSURER\tTREATMENT\tSTATUS\tDECISION\tSUBMITTED")
		for _, r := range requests {
			decision := "-"
			if r.Decision != nil {
				decision = string(r.Decision.Decision)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Insurance, r.Treatment, r.Status, decision, r.Timestamp.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(seedCmd, listCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (analyzed, processed)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of requests")
}
