package service

import (
	"strings"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const (
	overrideConfidence          = 95
	defensiveOverrideConfidence = 90
	overrideAppealGuidance      = "Resubmit the request once the missing requirements are documented"
)

// ApplySafetyOverride reconciles a generated decision with the rule
// validation. A request with violations never leaves here APPROVED.
func ApplySafetyOverride(decision domain.Decision, validation domain.ValidationResult) domain.Decision {
	switch {
	case validation.AutoDeny:
		return overrideDecision(decision, validation.Violations, overrideConfidence)
	case decision.Decision == domain.DecisionApproved && len(validation.Violations) > 0:
		return overrideDecision(decision, validation.Violations, defensiveOverrideConfidence)
	default:
		return decision
	}
}

func overrideDecision(original domain.Decision, violations []string, confidence int) domain.Decision {
	return domain.Decision{
		Decision:              domain.DecisionDenied,
		Reason:                strings.Join(violations, "; "),
		ConfidenceScore:       confidence,
		MissingDocumentation:  nonNilStrings(original.MissingDocumentation),
		AlternativeTreatments: nonNilStrings(original.AlternativeTreatments),
		AppealGuidance:        overrideAppealGuidance,
		SafetyOverride:        true,
		OriginalAIDecision:    original.Decision,
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}
