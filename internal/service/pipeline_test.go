package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/audit"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/rules"
)

const approvedJSON = `{"decision": "APPROVED", "reason": "Criteria met", "confidence_score": 85,
	"missing_documentation": [], "alternative_treatments": [], "appeal_guidance": ""}`

var testParams = domain.GenerationParams{MaxTokens: 512, Temperature: 0.1, TopP: 0.8}

func newTestDecisionService(store *MockRequestStore, gen *MockGenerator) *DecisionService {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewDecisionService(logger, store, gen, rules.Default(), testParams)
}

func blueCrossMRIRequest() *domain.Request {
	return &domain.Request{
		ID:        "req-mri",
		Treatment: "MRI",
		Insurance: "BlueCross",
		History:   "2 weeks conservative treatment, no x-ray performed",
		Status:    domain.StatusAnalyzed,
	}
}

func TestDecisionService_Process_SafetyOverride(t *testing.T) {
	ctx := context.Background()
	store := new(MockRequestStore)
	gen := new(MockGenerator)
	recorder := new(MockAuditRecorder)

	store.On("Get", ctx, "req-mri").Return(blueCrossMRIRequest(), nil)
	gen.On("Generate", ctx, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "X-ray not performed")
	}), testParams).Return(approvedJSON, nil)
	store.On("UpdateDecision", mock.Anything, "req-mri", mock.MatchedBy(func(u domain.DecisionUpdate) bool {
		return u.Decision.Decision == domain.DecisionDenied && u.Decision.SafetyOverride && !u.ProcessedAt.IsZero()
	})).Return(nil)
	recorder.On("Record", mock.Anything, mock.MatchedBy(func(e audit.Entry) bool {
		return e.RequestID == "req-mri" && e.AIDecision == domain.DecisionApproved &&
			e.FinalDecision == domain.DecisionDenied && e.SafetyOverride && len(e.Violations) == 2
	})).Return(nil)

	svc := newTestDecisionService(store, gen).WithAuditRecorder(recorder)
	result, err := svc.Process(ctx, "req-mri")
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryMRI, result.TreatmentCategory)
	assert.Equal(t, domain.DecisionDenied, result.Decision.Decision)
	assert.True(t, result.Decision.SafetyOverride)
	assert.Equal(t, domain.DecisionApproved, result.Decision.OriginalAIDecision)
	assert.Equal(t, 95, result.Decision.ConfidenceScore)
	assert.Equal(t, []string{
		"X-ray not performed (required before MRI or advanced imaging)",
		"Conservative treatment duration insufficient: 2 weeks (minimum 6 required)",
	}, result.Validation.Violations)
	assert.False(t, result.Validation.FactsSummary.XRayPerformed)
	assert.Equal(t, 2, result.Validation.FactsSummary.ConservativeTreatmentWeeks)
	assert.True(t, result.Persisted)
	assert.Equal(t, "mock", result.Generator)

	store.AssertExpectations(t)
	gen.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestDecisionService_Evaluate_NeverApprovesViolations(t *testing.T) {
	outputs := []string{
		approvedJSON,
		"APPROVED. Authorized at 99%.",
		`{"decision": "CONDITIONAL", "reason": "Need notes"}`,
		"",
	}

	for _, output := range outputs {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(output, nil)

		result := newTestDecisionService(new(MockRequestStore), gen).Evaluate(context.Background(), blueCrossMRIRequest())

		assert.Equal(t, domain.DecisionDenied, result.Decision.Decision, "output %q", output)
		assert.True(t, result.Decision.SafetyOverride, "output %q", output)
	}
}

func TestDecisionService_Evaluate_GeneratorFailure(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("", domain.NewGenerationError(domain.GenerationAccessDenied, "status 403", nil))

	t.Run("without violations falls back to pending", func(t *testing.T) {
		req := &domain.Request{ID: "req-2", Treatment: "Hearing aid", Insurance: "BlueCross"}
		result := newTestDecisionService(new(MockRequestStore), gen).Evaluate(context.Background(), req)

		assert.Equal(t, domain.DecisionPending, result.Decision.Decision)
		assert.Equal(t, "Manual review required - access to the generation model was denied", result.Decision.Reason)
		assert.Equal(t, 0, result.Decision.ConfidenceScore)
		assert.False(t, result.Decision.SafetyOverride)
	})

	t.Run("with violations still denies", func(t *testing.T) {
		result := newTestDecisionService(new(MockRequestStore), gen).Evaluate(context.Background(), blueCrossMRIRequest())

		assert.Equal(t, domain.DecisionDenied, result.Decision.Decision)
		assert.True(t, result.Decision.SafetyOverride)
		assert.Equal(t, domain.DecisionPending, result.Decision.OriginalAIDecision)
	})
}

func TestDecisionService_Evaluate_ApprovalPassesThrough(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(approvedJSON, nil)

	req := &domain.Request{
		ID:            "req-3",
		Treatment:     "Ozempic",
		Insurance:     "bcbs",
		History:       "HbA1c of 8.6%, failed 2 prior medications",
		ProviderNotes: "Medically necessary",
	}
	result := newTestDecisionService(new(MockRequestStore), gen).Evaluate(context.Background(), req)

	assert.Equal(t, domain.CategoryDiabetes, result.TreatmentCategory)
	assert.Empty(t, result.Validation.Violations)
	assert.Equal(t, domain.DecisionApproved, result.Decision.Decision)
	assert.False(t, result.Decision.SafetyOverride)
}

func TestDecisionService_Process_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing id", func(t *testing.T) {
		_, err := newTestDecisionService(new(MockRequestStore), new(MockGenerator)).Process(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrMissingRequestID)
	})

	t.Run("not found", func(t *testing.T) {
		store := new(MockRequestStore)
		store.On("Get", ctx, "nope").Return(nil, domain.ErrNotFound)

		_, err := newTestDecisionService(store, new(MockGenerator)).Process(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("store unavailable", func(t *testing.T) {
		store := new(MockRequestStore)
		store.On("Get", ctx, "req-1").Return(nil, errors.New("connection refused"))

		_, err := newTestDecisionService(store, new(MockGenerator)).Process(ctx, "req-1")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}

func TestDecisionService_Process_UpdateFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockRequestStore)
	gen := new(MockGenerator)
	recorder := new(MockAuditRecorder)

	store.On("Get", ctx, "req-mri").Return(blueCrossMRIRequest(), nil)
	store.On("UpdateDecision", mock.Anything, "req-mri", mock.Anything).Return(errors.New("write timeout"))
	gen.On("Generate", ctx, mock.Anything, testParams).Return(approvedJSON, nil)
	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("audit disk full"))

	result, err := newTestDecisionService(store, gen).WithAuditRecorder(recorder).Process(ctx, "req-mri")
	require.NoError(t, err)

	assert.False(t, result.Persisted)
	assert.Equal(t, domain.DecisionDenied, result.Decision.Decision)
	recorder.AssertNumberOfCalls(t, "Record", 1)
}

func TestDecisionService_Assess(t *testing.T) {
	svc := newTestDecisionService(new(MockRequestStore), new(MockGenerator))

	a := svc.Assess(&domain.Request{
		Treatment:     "MRI Knee",
		Insurance:     "aetna",
		ProviderNotes: "Patient requests imaging for peace of mind",
	})

	assert.Equal(t, "Aetna", a.Insurer)
	assert.Equal(t, domain.CategoryMRI, a.Category)
	assert.Equal(t, domain.CategoryGeneral, a.Rule.Category)
	assert.Equal(t, []string{violationPeaceOfMind, violationNoNecessity}, a.Validation.Violations)
	assert.True(t, a.Validation.AutoDeny)
}
