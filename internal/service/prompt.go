package service

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// PromptInput is everything a decision prompt is rendered from.
type PromptInput struct {
	Request    domain.Request
	Category   domain.TreatmentCategory
	Rule       domain.InsuranceRule
	Validation domain.ValidationResult
	Extraction *domain.ExtractionResult
}

const decisionPromptText = `You are a prior-authorization reviewer for a health insurer. Decide whether the requested treatment should be authorized.

REQUEST
Patient: {{.Request.PatientInfo}}
Treatment: {{.Request.Treatment}}
Treatment category: {{.Category}}
Insurance: {{.Request.Insurance}}
Medical history: {{.Request.History}}
Urgency: {{.Request.Urgency}}
Provider notes: {{.Request.ProviderNotes}}
{{- with .Extraction}}

EXTRACTED DOCUMENT DATA ({{.DocumentType}}, confidence {{printf "%.2f" .Confidence}})
{{- range $name, $field := .Fields}}
- {{$name}}: {{fieldText $field}}
{{- end}}
{{- end}}

INSURANCE RULES{{with .Rule.Insurer}} ({{.}}){{end}}
Criteria: {{or .Rule.Criteria "No specific criteria on file"}}
Required documents: {{list .Rule.RequiredDocuments}}
Common denial reasons: {{list .Rule.DenialReasons}}
Minimum requirements: {{tokens .Rule.MinimumRequirements}}

EXTRACTED CLINICAL FACTS
- X-ray performed: {{yesno .Validation.FactsSummary.XRayPerformed}}
- Physical therapy attempted: {{yesno .Validation.FactsSummary.PhysicalTherapyAttempted}}
- Conservative treatment: {{.Validation.FactsSummary.ConservativeTreatmentWeeks}} weeks
- Pain score: {{.Validation.FactsSummary.PainScore}}/10
- Peace-of-mind request: {{yesno .Validation.FactsSummary.PeaceOfMindRequest}}
- Medical necessity documented: {{yesno .Validation.FactsSummary.MedicalNecessity}}
{{- if .Validation.FactsSummary.HbA1c}}
- HbA1c: {{printf "%.1f" .Validation.FactsSummary.HbA1c}}%
{{- end}}
- Failed prior medications: {{.Validation.FactsSummary.FailedMedications}}

RULE VIOLATIONS
{{- if .Validation.Violations}}
{{- range .Validation.Violations}}
- {{.}}
{{- end}}
{{- else}}
None
{{- end}}

MANDATORY INSTRUCTIONS
1. If any rule violation is listed above, the decision MUST be DENIED.
2. A DENIED decision must cite every listed violation in the reason.
3. Only approve when no violation is listed and the criteria are met.
4. Requests made for peace of mind are not medically necessary.
5. Use CONDITIONAL when approval depends on documents that are missing but obtainable.

EXAMPLES
Violations: "X-ray not performed (required before MRI or advanced imaging)"
Response: {"decision": "DENIED", "reason": "X-ray not performed (required before MRI or advanced imaging)", "confidence_score": 95, "missing_documentation": ["X-ray report"], "alternative_treatments": ["X-ray imaging", "Physical therapy"], "appeal_guidance": "Resubmit with the X-ray report attached"}
Violations: None
Response: {"decision": "APPROVED", "reason": "All insurer criteria are documented", "confidence_score": 85, "missing_documentation": [], "alternative_treatments": [], "appeal_guidance": ""}

Respond with a single JSON object and nothing else:
{
  "decision": "APPROVED|DENIED|CONDITIONAL|PENDING",
  "reason": "detailed explanation",
  "confidence_score": 0-100,
  "missing_documentation": ["list"],
  "alternative_treatments": ["list"],
  "appeal_guidance": "how to appeal or resubmit"
}`

var promptFuncs = template.FuncMap{
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"list": func(items []string) string {
		if len(items) == 0 {
			return "None"
		}
		return strings.Join(items, ", ")
	},
	"tokens": func(items []domain.RequirementToken) string {
		if len(items) == 0 {
			return "None"
		}
		out := make([]string, len(items))
		for i, tok := range items {
			out[i] = string(tok)
		}
		return strings.Join(out, ", ")
	},
	"fieldText": func(f domain.ExtractedField) string {
		if len(f.Items) > 0 {
			return strings.Join(f.Items, ", ")
		}
		return f.Text
	},
}

// PromptBuilder renders decision prompts.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder parses the decision prompt template.
func NewPromptBuilder() (*PromptBuilder, error) {
	t, err := template.New("decision").Funcs(promptFuncs).Parse(decisionPromptText)
	if err != nil {
		return nil, fmt.Errorf("parsing decision prompt: %w", err)
	}
	return &PromptBuilder{tmpl: t}, nil
}

// MustNewPromptBuilder is NewPromptBuilder for package-level construction.
func MustNewPromptBuilder() *PromptBuilder {
	b, err := NewPromptBuilder()
	if err != nil {
		panic(err)
	}
	return b
}

// Build renders the prompt. Blank request fields are replaced by their
// placeholders first so the prompt never carries empty values.
func (b *PromptBuilder) Build(in PromptInput) (string, error) {
	in.Request = in.Request.WithDefaults()

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("rendering decision prompt: %w", err)
	}
	return buf.String(), nil
}
