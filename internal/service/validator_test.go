package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/rules"
)

func newTestValidator() *RuleValidator {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewRuleValidator(logger)
}

func TestRequirementChecksCoverEveryToken(t *testing.T) {
	for _, tok := range domain.AllRequirementTokens() {
		_, ok := requirementChecks[tok]
		assert.True(t, ok, "no check for %s", tok)
	}
}

func TestRuleValidator_BlueCrossMRI(t *testing.T) {
	v := newTestValidator()
	rule := rules.Default().Lookup("BlueCross", string(domain.CategoryMRI))

	result := v.Validate(domain.ClinicalFacts{XRayPerformed: false, ConservativeTreatmentWeeks: 2}, rule, "BlueCross")

	require.Len(t, result.Violations, 2)
	assert.Equal(t, "X-ray not performed (required before MRI or advanced imaging)", result.Violations[0])
	assert.Equal(t, "Conservative treatment duration insufficient: 2 weeks (minimum 6 required)", result.Violations[1])
	assert.True(t, result.AutoDeny)
	assert.Empty(t, result.UnhandledRequirements)
}

func TestRuleValidator_RequirementsMet(t *testing.T) {
	v := newTestValidator()
	rule := rules.Default().Lookup("BlueCross", string(domain.CategoryMRI))

	result := v.Validate(domain.ClinicalFacts{XRayPerformed: true, ConservativeTreatmentWeeks: 8}, rule, "BlueCross")

	assert.Empty(t, result.Violations)
	assert.NotNil(t, result.Violations)
	assert.False(t, result.AutoDeny)
}

func TestRuleValidator_Messages(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		token    domain.RequirementToken
		facts    domain.ClinicalFacts
		expected string
	}{
		{"pain", domain.RequirePainScore7, domain.ClinicalFacts{PainScore: 5}, "Pain score insufficient: 5/10 (minimum 7 required)"},
		{"twelve weeks", domain.RequireConservativeTreatment12Week, domain.ClinicalFacts{ConservativeTreatmentWeeks: 8},
			"Conservative treatment duration insufficient: 8 weeks (minimum 12 required)"},
		{"hba1c missing", domain.RequireHbA1c8, domain.ClinicalFacts{}, "HbA1c not documented (minimum 8% required)"},
		{"hba1c low", domain.RequireHbA1c8, domain.ClinicalFacts{HbA1c: 7.2}, "HbA1c insufficient: 7.2% (minimum 8% required)"},
		{"medications", domain.RequireTwoFailedMedications, domain.ClinicalFacts{FailedMedications: 1},
			"Insufficient prior medication failures: 1 (minimum 2 required)"},
		{"cardiac", domain.RequireCardiacWorkup, domain.ClinicalFacts{}, "Cardiac workup incomplete (recent echocardiogram and ECG required)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := domain.InsuranceRule{MinimumRequirements: []domain.RequirementToken{tt.token}}
			result := v.Validate(tt.facts, rule, "test")
			require.Len(t, result.Violations, 1)
			assert.Equal(t, tt.expected, result.Violations[0])
		})
	}
}

func TestRuleValidator_StrictNecessity(t *testing.T) {
	v := newTestValidator()
	rule := rules.Default().Lookup("Aetna", string(domain.CategoryMRI))
	require.True(t, rule.StrictNecessity)

	result := v.Validate(domain.ClinicalFacts{PeaceOfMindRequest: true}, rule, "Aetna")
	assert.Equal(t, []string{violationPeaceOfMind, violationNoNecessity}, result.Violations)
	assert.True(t, result.AutoDeny)

	result = v.Validate(domain.ClinicalFacts{MedicalNecessity: true}, rule, "Aetna")
	assert.Empty(t, result.Violations)

	// Insurers without the flag never get the escalations.
	other := rules.Default().Lookup("Cigna", domain.CategoryGeneral)
	result = v.Validate(domain.ClinicalFacts{PeaceOfMindRequest: true}, other, "Cigna")
	assert.Empty(t, result.Violations)
}

func TestRuleValidator_UnhandledToken(t *testing.T) {
	v := newTestValidator()
	rule := domain.InsuranceRule{
		Category:            "experimental",
		MinimumRequirements: []domain.RequirementToken{"bmi_over_30", domain.RequireXRay},
	}

	result := v.Validate(domain.ClinicalFacts{XRayPerformed: true}, rule, "test")

	assert.Empty(t, result.Violations)
	assert.Equal(t, []domain.RequirementToken{"bmi_over_30"}, result.UnhandledRequirements)
}

func TestRuleValidator_EmptyRule(t *testing.T) {
	v := newTestValidator()
	result := v.Validate(domain.ClinicalFacts{}, rules.Default().Lookup("Unknown Insurer", "mri"), "Unknown Insurer")

	assert.Empty(t, result.Violations)
	assert.False(t, result.AutoDeny)
}
