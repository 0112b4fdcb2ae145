package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

func TestDefaultRepositoryLoads(t *testing.T) {
	repo := Default()
	require.NotNil(t, repo)
	assert.Equal(t, []string{"BlueCross", "Aetna", "UnitedHealthcare", "Cigna", "Humana"}, repo.Insurers())
}

func TestCanonicalInsurer(t *testing.T) {
	repo := Default()

	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"BlueCross", "BlueCross", true},
		{"bcbs", "BlueCross", true},
		{"Blue  Cross", "BlueCross", true},
		{"blue-cross blue-shield", "BlueCross", true},
		{" AETNA ", "Aetna", true},
		{"UHC", "UnitedHealthcare", true},
		{"United Healthcare", "UnitedHealthcare", true},
		{"cigna", "Cigna", true},
		{"Humana", "Humana", true},
		{"Kaiser", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := repo.CanonicalInsurer(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLookup(t *testing.T) {
	repo := Default()

	t.Run("category specific rule", func(t *testing.T) {
		rule := repo.Lookup("bcbs", "mri")
		assert.Equal(t, "BlueCross", rule.Insurer)
		assert.Equal(t, "mri", rule.Category)
		assert.Equal(t, []domain.RequirementToken{
			domain.RequireXRay,
			domain.RequireConservativeTreatment6Weeks,
		}, rule.MinimumRequirements)
		assert.False(t, rule.StrictNecessity)
	})

	t.Run("unknown category falls back to general", func(t *testing.T) {
		rule := repo.Lookup("Aetna", "cardiology")
		assert.Equal(t, domain.CategoryGeneral, rule.Category)
		assert.True(t, rule.StrictNecessity)
		assert.NotEmpty(t, rule.Criteria)
	})

	t.Run("none category falls back to general", func(t *testing.T) {
		rule := repo.Lookup("Cigna", string(domain.CategoryNone))
		assert.Equal(t, domain.CategoryGeneral, rule.Category)
	})

	t.Run("unknown insurer yields empty rule", func(t *testing.T) {
		rule := repo.Lookup("Kaiser", "mri")
		assert.True(t, rule.IsEmpty())
		assert.NotNil(t, rule.MinimumRequirements)
		assert.NotNil(t, rule.RequiredDocuments)
	})
}

func TestLookupIsTotal(t *testing.T) {
	repo := Default()
	insurers := append(repo.Insurers(), "unknown", "", "bcbs")
	categories := []string{"", "none", "general", "mri", "imaging", "diabetes", "specialty_drugs", "made_up"}

	for _, ins := range insurers {
		for _, cat := range categories {
			rule := repo.Lookup(ins, cat)
			assert.NotNil(t, rule.MinimumRequirements, "insurer=%q category=%q", ins, cat)
		}
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	repo := Default()

	rule := repo.Lookup("BlueCross", "mri")
	rule.MinimumRequirements[0] = domain.RequireSecondOpinion
	rule.RequiredDocuments = append(rule.RequiredDocuments, "tampered")

	again := repo.Lookup("BlueCross", "mri")
	assert.Equal(t, domain.RequireXRay, again.MinimumRequirements[0])
	assert.NotContains(t, again.RequiredDocuments, "tampered")
}

func TestLoadRejectsUnknownToken(t *testing.T) {
	data := []byte(`
insurers:
  - name: Acme
    rules:
      general:
        criteria: anything
        minimum_requirements: [bmi_over_30]
`)
	_, err := Load(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequirement))
}

func TestLoadRejectsMissingGeneral(t *testing.T) {
	data := []byte(`
insurers:
  - name: Acme
    rules:
      mri:
        criteria: anything
`)
	_, err := Load(data)
	assert.Error(t, err)
}

func TestLoadRejectsConflictingAlias(t *testing.T) {
	data := []byte(`
insurers:
  - name: Acme
    aliases: [shared]
    rules:
      general: {criteria: a}
  - name: Zenith
    aliases: [shared]
    rules:
      general: {criteria: b}
`)
	_, err := Load(data)
	assert.Error(t, err)
}

func TestCategories(t *testing.T) {
	repo := Default()
	assert.Equal(t, []string{"cardiology", "general", "orthopedic"}, repo.Categories("cigna"))
	assert.Nil(t, repo.Categories("nobody"))
}
