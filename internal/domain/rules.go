package domain

import (
	"fmt"
)

// RequirementToken names one minimum-eligibility check an insurer can demand.
// The set is closed: every token has a handler in the rule validator.
type RequirementToken string

const (
	RequireXRay                        RequirementToken = "x_ray_required"
	RequireConservativeTreatment6Weeks RequirementToken = "conservative_treatment_6weeks"
	RequireConservativeTreatment12Week RequirementToken = "conservative_treatment_12weeks"
	RequirePainScore7                  RequirementToken = "pain_score_7"
	RequirePhysicalTherapyAttempted    RequirementToken = "physical_therapy_attempted"
	RequireHbA1c8                      RequirementToken = "hba1c_8"
	RequireTwoFailedMedications        RequirementToken = "two_failed_medications"
	RequireSecondOpinion               RequirementToken = "second_opinion"
	RequireHistologyConfirmed          RequirementToken = "histology_confirmed"
	RequireStagingComplete             RequirementToken = "staging_complete"
	RequirePsychiatricEvaluation       RequirementToken = "psychiatric_evaluation"
	RequireCardiacWorkup               RequirementToken = "cardiac_workup"
	RequirePriorImaging                RequirementToken = "prior_imaging"
	RequireProgressNotes               RequirementToken = "progress_notes"
)

// AllRequirementTokens returns every known token in declaration order.
func AllRequirementTokens() []RequirementToken {
	return []RequirementToken{
		RequireXRay,
		RequireConservativeTreatment6Weeks,
		RequireConservativeTreatment12Week,
		RequirePainScore7,
		RequirePhysicalTherapyAttempted,
		RequireHbA1c8,
		RequireTwoFailedMedications,
		RequireSecondOpinion,
		RequireHistologyConfirmed,
		RequireStagingComplete,
		RequirePsychiatricEvaluation,
		RequireCardiacWorkup,
		RequirePriorImaging,
		RequireProgressNotes,
	}
}

// IsValid reports whether t is a known requirement token.
func (t RequirementToken) IsValid() bool {
	for _, known := range AllRequirementTokens() {
		if t == known {
			return true
		}
	}
	return false
}

func (t RequirementToken) String() string {
	return string(t)
}

// ParseRequirementToken converts a raw token, failing on unknown values.
func ParseRequirementToken(raw string) (RequirementToken, error) {
	t := RequirementToken(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRequirement, raw)
	}
	return t, nil
}

// InsuranceRule holds the eligibility criteria of one insurer for one category.
// Rules are static configuration and are never mutated at runtime.
type InsuranceRule struct {
	Insurer             string             `json:"insurer"`
	Category            string             `json:"category"`
	Criteria            string             `json:"criteria"`
	RequiredDocuments   []string           `json:"required_documents"`
	DenialReasons       []string           `json:"denial_reasons"`
	MinimumRequirements []RequirementToken `json:"minimum_requirements"`
	// StrictNecessity makes "peace of mind" requests and missing medical
	// necessity unconditional violations for this insurer.
	StrictNecessity bool `json:"strict_necessity"`
}

// IsEmpty reports whether the rule is the empty default returned for unknown insurers.
func (r InsuranceRule) IsEmpty() bool {
	return r.Insurer == "" && r.Criteria == "" && len(r.MinimumRequirements) == 0
}

// ClinicalFacts are the structured signals mined from a request's free text.
// They are recomputed for every request and never stored on their own.
type ClinicalFacts struct {
	XRayPerformed              bool    `json:"x_ray_performed"`
	PhysicalTherapyAttempted   bool    `json:"physical_therapy_attempted"`
	ConservativeTreatmentWeeks int     `json:"conservative_treatment_weeks"`
	PainScore                  int     `json:"pain_score"`
	PeaceOfMindRequest         bool    `json:"peace_of_mind_request"`
	MedicalNecessity           bool    `json:"medical_necessity"`
	HbA1c                      float64 `json:"hba1c"`
	FailedMedications          int     `json:"failed_medications"`
	SecondOpinion              bool    `json:"second_opinion"`
	HistologyConfirmed         bool    `json:"histology_confirmed"`
	StagingComplete            bool    `json:"staging_complete"`
	PsychiatricEvaluation      bool    `json:"psychiatric_evaluation"`
	CardiacWorkup              bool    `json:"cardiac_workup"`
	PriorImaging               bool    `json:"prior_imaging"`
	ProgressNotes              bool    `json:"progress_notes"`
}

// ValidationResult is the outcome of checking facts against an insurance rule.
// AutoDeny is true exactly when Violations is non-empty.
type ValidationResult struct {
	Violations            []string           `json:"violations"`
	AutoDeny              bool               `json:"auto_deny"`
	FactsSummary          ClinicalFacts      `json:"facts_summary"`
	UnhandledRequirements []RequirementToken `json:"unhandled_requirements,omitempty"`
}

// NewValidationResult builds a result that satisfies the AutoDeny invariant.
func NewValidationResult(violations []string, facts ClinicalFacts) ValidationResult {
	if violations == nil {
		violations = []string{}
	}
	return ValidationResult{
		Violations:   violations,
		AutoDeny:     len(violations) > 0,
		FactsSummary: facts,
	}
}
