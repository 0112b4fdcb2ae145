package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
)

var (
	evalPatient   string
	evalInsurance string
	evalTreatment string
	evalHistory   string
	evalNotes     string
	evalUrgency   string
	evalDocument  string
	evalJSON      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Submit a request and decide it",
	Long: `Evaluate registers a new request and runs the decision pipeline on it.

Example:
  priorauth evaluate --insurance Aetna --treatment "MRI knee" \
    --history "Knee pain for 3 weeks, no x-ray" --notes "peace of mind"`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

var processCmd = &cobra.Command{
	Use:   "process <request-id>",
	Short: "Decide a stored request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Decisions.Process(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printDecision(cmd.OutOrStdout(), result, evalJSON)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd, processCmd)

	evaluateCmd.Flags().StringVar(&evalPatient, "patient", "Anonymous", "patient name")
	evaluateCmd.Flags().StringVar(&evalInsurance, "insurance", "", "insurer name (required)")
	evaluateCmd.Flags().StringVar(&evalTreatment, "treatment", "", "requested treatment (required)")
	evaluateCmd.Flags().StringVar(&evalHistory, "history", "", "medical history")
	evaluateCmd.Flags().StringVar(&evalNotes, "notes", "", "provider notes")
	evaluateCmd.Flags().StringVar(&evalUrgency, "urgency", "Standard", "urgency")
	evaluateCmd.Flags().StringVar(&evalDocument, "document", "", "supporting document file")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "print the full result as JSON")
	processCmd.Flags().BoolVar(&evalJSON, "json", false, "print the full result as JSON")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	in := service.IntakeRequest{
		PatientName:   evalPatient,
		InsuranceType: evalInsurance,
		TreatmentType: evalTreatment,
		History:       evalHistory,
		ProviderNotes: evalNotes,
		Urgency:       evalUrgency,
	}
	if evalDocument != "" {
		data, err := os.ReadFile(evalDocument)
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		in.Document = base64.StdEncoding.EncodeToString(data)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	submitted, err := a.Intake.Submit(ctx, in)
	if err != nil {
		return err
	}
	if doc := submitted.Document; doc != nil && doc.Error != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "document rejected: %s\n", doc.Error.Message)
	}

	result, err := a.Decisions.Process(ctx, submitted.RequestID)
	if err != nil {
		return err
	}
	return printDecision(cmd.OutOrStdout(), result, evalJSON)
}

func printDecision(w io.Writer, result *domain.DecisionResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	d := result.Decision
	fmt.Fprintf(w, "Request:    %s\n", result.RequestID)
	fmt.Fprintf(w, "Category:   %s\n", result.TreatmentCategory)
	fmt.Fprintf(w, "Decision:   %s (confidence %d)\n", d.Decision, d.ConfidenceScore)
	fmt.Fprintf(w, "Reason:     %s\n", d.Reason)
	if d.SafetyOverride {
		fmt.Fprintf(w, "Override:   generated decision was %s\n", d.OriginalAIDecision)
	}
	if len(result.Validation.Violations) > 0 {
		fmt.Fprintln(w, "Violations:")
		for _, v := range result.Validation.Violations {
			fmt.Fprintf(w, "  - %s\n", v)
		}
	}
	if len(d.MissingDocumentation) > 0 {
		fmt.Fprintln(w, "Missing documentation:")
		for _, m := range d.MissingDocumentation {
			fmt.Fprintf(w, "  - %s\n", m)
		}
	}
	if d.AppealGuidance != "" {
		fmt.Fprintf(w, "Appeal:     %s\n", d.AppealGuidance)
	}
	if !result.Persisted {
		fmt.Fprintln(w, "Warning:    decision could not be saved")
	}
	return nil
}
