package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/audit"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// AuditRecorder receives one entry per processed decision.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// persistTimeout bounds the decision and audit writes. Both run detached
// from the caller's context.
const persistTimeout = 10 * time.Second

// Assessment is the deterministic half of the pipeline: everything that can
// be known about a request without calling the generator.
type Assessment struct {
	Insurer    string                   `json:"insurer"`
	Category   domain.TreatmentCategory `json:"treatment_category"`
	Rule       domain.InsuranceRule     `json:"rule"`
	Validation domain.ValidationResult  `json:"validation"`
}

// DecisionService runs the prior-authorization decision pipeline:
// categorize, look up rules, extract facts, validate, generate, parse and
// reconcile.
type DecisionService struct {
	logger    *logrus.Logger
	store     domain.RequestStore
	generator domain.Generator
	rules     domain.RuleRepository
	validator *RuleValidator
	prompts   *PromptBuilder
	params    domain.GenerationParams
	recorder  AuditRecorder
	now       func() time.Time
}

// NewDecisionService creates a new decision service
func NewDecisionService(
	logger *logrus.Logger,
	store domain.RequestStore,
	generator domain.Generator,
	rules domain.RuleRepository,
	params domain.GenerationParams,
) *DecisionService {
	return &DecisionService{
		logger:    logger,
		store:     store,
		generator: generator,
		rules:     rules,
		validator: NewRuleValidator(logger),
		prompts:   MustNewPromptBuilder(),
		params:    params,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithAuditRecorder attaches an audit trail to the service.
func (s *DecisionService) WithAuditRecorder(recorder AuditRecorder) *DecisionService {
	s.recorder = recorder
	return s
}

// Process loads a stored request, decides it and writes the decision back.
// Only a missing id, an unknown id or an unreadable store are returned as
// errors; a failed write is logged and reported through Persisted.
func (s *DecisionService) Process(ctx context.Context, requestID string) (*domain.DecisionResult, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, domain.ErrMissingRequestID
	}

	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
		}
		s.logger.WithError(err).WithField("request_id", requestID).Error("Failed to read request")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	result := s.Evaluate(ctx, req)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	update := domain.DecisionUpdate{Decision: result.Decision, ProcessedAt: result.ProcessedAt}
	if err := s.store.UpdateDecision(wctx, requestID, update); err != nil {
		s.logger.WithError(err).WithField("request_id", requestID).Error("Failed to persist decision")
	} else {
		result.Persisted = true
	}

	return result, nil
}

// Assess categorizes the request, resolves its rule and validates the
// extracted facts against it.
func (s *DecisionService) Assess(req *domain.Request) Assessment {
	r := req.WithDefaults()

	category := CategorizeTreatment(r.Treatment)
	insurer, ok := s.rules.CanonicalInsurer(r.Insurance)
	if !ok {
		insurer = r.Insurance
	}
	rule := s.rules.Lookup(r.Insurance, string(category))
	facts := ExtractClinicalFacts(r.History, r.ProviderNotes, r.Treatment)

	return Assessment{
		Insurer:    insurer,
		Category:   category,
		Rule:       rule,
		Validation: s.validator.Validate(facts, rule, insurer),
	}
}

// Evaluate decides a request without touching the store. It never fails:
// generator problems degrade to the fallback decision, and rule violations
// always end in a denial.
func (s *DecisionService) Evaluate(ctx context.Context, req *domain.Request) *domain.DecisionResult {
	start := time.Now()
	assessment := s.Assess(req)

	logger := s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"insurer":    assessment.Insurer,
		"category":   string(assessment.Category),
		"violations": len(assessment.Validation.Violations),
	})
	logger.Info("Evaluating prior authorization request")

	generated := s.generate(ctx, req, assessment, logger)
	final := ApplySafetyOverride(generated, assessment.Validation)

	if final.SafetyOverride {
		logger.WithFields(logrus.Fields{
			"original_ai_decision": string(final.OriginalAIDecision),
			"safety_override":      true,
		}).Warn("Rule violations overrode generated decision")
	}

	result := &domain.DecisionResult{
		RequestID:         req.ID,
		Decision:          final,
		TreatmentCategory: assessment.Category,
		Validation:        assessment.Validation,
		Generator:         s.generator.Name(),
		ProcessedAt:       s.now(),
		ProcessingTime:    time.Since(start).Seconds(),
	}

	logger.WithFields(logrus.Fields(final.LogFields())).Info("Prior authorization decision completed")
	s.recordAudit(ctx, assessment, generated, result)
	return result
}

func (s *DecisionService) generate(ctx context.Context, req *domain.Request, a Assessment, logger *logrus.Entry) domain.Decision {
	in := PromptInput{
		Request:    *req,
		Category:   a.Category,
		Rule:       a.Rule,
		Validation: a.Validation,
	}
	if req.Document != nil {
		in.Extraction = req.Document.Extraction
	}

	prompt, err := s.prompts.Build(in)
	if err != nil {
		logger.WithError(err).Error("Failed to build decision prompt")
		return domain.FallbackDecision("the decision prompt could not be built")
	}

	text, err := s.generator.Generate(ctx, prompt, s.params)
	if err != nil {
		logger.WithError(err).Error("Generation failed, using fallback decision")
		return domain.FallbackDecision(domain.FallbackReason(err))
	}
	return ParseDecision(text)
}

func (s *DecisionService) recordAudit(ctx context.Context, a Assessment, generated domain.Decision, result *domain.DecisionResult) {
	if s.recorder == nil {
		return
	}
	entry := audit.Entry{
		RequestID:      result.RequestID,
		Insurer:        a.Insurer,
		Category:       string(a.Category),
		Violations:     append([]string{}, a.Validation.Violations...),
		AIDecision:     generated.Decision,
		FinalDecision:  result.Decision.Decision,
		Confidence:     result.Decision.ConfidenceScore,
		SafetyOverride: result.Decision.SafetyOverride,
		Generator:      result.Generator,
		CreatedAt:      result.ProcessedAt,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.recorder.Record(wctx, entry); err != nil {
		s.logger.WithError(err).WithField("request_id", result.RequestID).Error("Failed to record audit entry")
	}
}
