package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/rules"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [insurer] [treatment]",
	Short: "Show insurer rules",
	Long: `Without arguments, list the known insurers and their rule categories.
With an insurer and a treatment, print the rule that applies.

Example:
  priorauth rules "blue cross" "MRI of the knee"`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := rules.Default()
		out := cmd.OutOrStdout()

		switch len(args) {
		case 0:
			for _, insurer := range repo.Insurers() {
				fmt.Fprintf(out, "%s: %s\n", insurer, strings.Join(repo.Categories(insurer), ", "))
			}
			return nil
		case 1:
			canonical, ok := repo.CanonicalInsurer(args[0])
			if !ok {
				return fmt.Errorf("unknown insurer %q", args[0])
			}
			fmt.Fprintf(out, "%s: %s\n", canonical, strings.Join(repo.Categories(canonical), ", "))
			return nil
		}

		category := service.CategorizeTreatment(args[1])
		rule := repo.Lookup(args[0], string(category))
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rule)
	},
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a YAML rule table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := rules.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d insurers OK\n", args[0], len(repo.Insurers()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}
