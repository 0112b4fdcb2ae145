package domain

import (
	"fmt"
	"time"
)

// DefaultConfidenceScore is assumed when a generated decision omits its confidence.
const DefaultConfidenceScore = 75

// Decision is the reconciled outcome for one request. It is produced once per
// pipeline run and always persisted as a whole.
type Decision struct {
	Decision              DecisionStatus `json:"decision"`
	Reason                string         `json:"reason"`
	ConfidenceScore       int            `json:"confidence_score"`
	MissingDocumentation  []string       `json:"missing_documentation"`
	AlternativeTreatments []string       `json:"alternative_treatments"`
	AppealGuidance        string         `json:"appeal_guidance"`
	SafetyOverride        bool           `json:"safety_override,omitempty"`
	OriginalAIDecision    DecisionStatus `json:"original_ai_decision,omitempty"`
}

// FallbackDecision is the conservative PENDING decision used whenever the
// generative step fails or produces nothing usable.
func FallbackDecision(reason string) Decision {
	return Decision{
		Decision:              DecisionPending,
		Reason:                "Manual review required - " + reason,
		ConfidenceScore:       0,
		MissingDocumentation:  []string{"Manual evaluation required"},
		AlternativeTreatments: []string{},
		AppealGuidance:        "Contact customer service for a manual review",
	}
}

// IsFallback reports whether d was produced by FallbackDecision.
func (d Decision) IsFallback() bool {
	return d.Decision == DecisionPending && d.ConfidenceScore == 0 &&
		len(d.MissingDocumentation) == 1 && d.MissingDocumentation[0] == "Manual evaluation required"
}

// Validate checks the decision invariants.
func (d Decision) Validate() error {
	if !d.Decision.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, d.Decision)
	}
	if d.ConfidenceScore < 0 || d.ConfidenceScore > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidConfidence, d.ConfidenceScore)
	}
	if d.SafetyOverride && d.Decision != DecisionDenied {
		return fmt.Errorf("%w: safety override must deny, got %s", ErrInvalidDecision, d.Decision)
	}
	return nil
}

// LogFields returns structured logging fields for the decision.
func (d Decision) LogFields() map[string]any {
	fields := map[string]any{
		"decision":        string(d.Decision),
		"confidence":      d.ConfidenceScore,
		"safety_override": d.SafetyOverride,
	}
	if d.SafetyOverride {
		fields["original_ai_decision"] = string(d.OriginalAIDecision)
	}
	return fields
}

// DecisionUpdate is the full set of decision fields written back to a stored
// request.
type DecisionUpdate struct {
	Decision    Decision
	ProcessedAt time.Time
}

// DecisionResult is what the pipeline returns for one processed request.
type DecisionResult struct {
	RequestID         string            `json:"request_id"`
	Decision          Decision          `json:"decision"`
	TreatmentCategory TreatmentCategory `json:"treatment_category"`
	Validation        ValidationResult  `json:"validation"`
	Generator         string            `json:"generator"`
	ProcessedAt       time.Time         `json:"processed_timestamp"`
	ProcessingTime    float64           `json:"processing_time_seconds"`
	Persisted         bool              `json:"persisted"`
}
