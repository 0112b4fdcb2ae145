package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/document"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// IntakeRequest is a new prior-authorization submission.
type IntakeRequest struct {
	PatientName    string   `json:"patient_name"`
	Age            string   `json:"age,omitempty"`
	InsuranceType  string   `json:"insurance_type"`
	MemberID       string   `json:"member_id,omitempty"`
	TreatmentType  string   `json:"treatment_type"`
	MedicalHistory []string `json:"medical_history,omitempty"`
	History        string   `json:"history,omitempty"`
	ProviderNotes  string   `json:"provider_notes,omitempty"`
	Urgency        string   `json:"urgency,omitempty"`
	Document       string   `json:"document,omitempty"`
}

// Validate reports every missing required field at once.
func (r *IntakeRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.PatientName) == "" {
		missing = append(missing, "patient_name")
	}
	if strings.TrimSpace(r.InsuranceType) == "" {
		missing = append(missing, "insurance_type")
	}
	if strings.TrimSpace(r.TreatmentType) == "" {
		missing = append(missing, "treatment_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required field(s): %s", domain.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// IntakeResult is returned to the submitter.
type IntakeResult struct {
	RequestID               string                   `json:"request_id"`
	Status                  domain.RequestStatus     `json:"status"`
	PatientName             string                   `json:"patient_name"`
	TreatmentType           string                   `json:"treatment_type"`
	EstimatedApprovalChance float64                  `json:"estimated_approval_chance"`
	Analysis                *domain.ApprovalAnalysis `json:"treatment_analysis"`
	Document                *domain.DocumentResult   `json:"document_data,omitempty"`
	NextSteps               []string                 `json:"next_steps"`
	Timestamp               time.Time                `json:"timestamp"`
}

// IntakeService registers new requests: patient record, optional document
// extraction and the informational approval estimate.
type IntakeService struct {
	logger    *logrus.Logger
	store     domain.RequestStore
	extractor domain.DocumentExtractor
	rules     domain.RuleRepository
	newID     func() string
	now       func() time.Time
}

// NewIntakeService creates a new intake service. extractor may be nil, in
// which case accepted documents are stored without extracted data.
func NewIntakeService(
	logger *logrus.Logger,
	store domain.RequestStore,
	extractor domain.DocumentExtractor,
	rules domain.RuleRepository,
) *IntakeService {
	return &IntakeService{
		logger:    logger,
		store:     store,
		extractor: extractor,
		rules:     rules,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a new request.
func (s *IntakeService) Submit(ctx context.Context, in IntakeRequest) (*IntakeResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	requestID := s.newID()
	logger := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"insurer":    in.InsuranceType,
	})

	patient := &domain.PatientInfo{
		Name:           strings.TrimSpace(in.PatientName),
		Age:            orPlaceholder(in.Age, domain.DefaultPatientInfo),
		InsuranceType:  strings.TrimSpace(in.InsuranceType),
		MemberID:       orPlaceholder(in.MemberID, "Not provided"),
		MedicalHistory: append([]string{}, in.MedicalHistory...),
	}

	var docResult *domain.DocumentResult
	if strings.TrimSpace(in.Document) != "" {
		docResult = s.processDocument(ctx, in.Document, logger)
	}

	analysis := AnalyzeApproval(s.rules, in.InsuranceType, in.TreatmentType)

	req := &domain.Request{
		ID:            requestID,
		PatientInfo:   describePatient(patient),
		Treatment:     strings.TrimSpace(in.TreatmentType),
		Insurance:     patient.InsuranceType,
		History:       joinHistory(in.MedicalHistory, in.History),
		ProviderNotes: strings.TrimSpace(in.ProviderNotes),
		Urgency:       strings.TrimSpace(in.Urgency),
		Status:        domain.StatusAnalyzed,
		Timestamp:     s.now(),
		Patient:       patient,
		Analysis:      analysis,
		Document:      docResult,
	}

	if err := s.store.Create(ctx, req); err != nil {
		logger.WithError(err).Error("Failed to store request")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	logger.WithField("approval_probability", analysis.ApprovalProbability).Info("Request registered")

	return &IntakeResult{
		RequestID:               requestID,
		Status:                  req.Status,
		PatientName:             patient.Name,
		TreatmentType:           req.Treatment,
		EstimatedApprovalChance: analysis.ApprovalProbability,
		Analysis:                analysis,
		Document:                docResult,
		NextSteps:               analysis.NextSteps,
		Timestamp:               req.Timestamp,
	}, nil
}

// processDocument returns an explicit error document for rejected uploads
// and nil when extraction itself fails.
func (s *IntakeService) processDocument(ctx context.Context, encoded string, logger *logrus.Entry) *domain.DocumentResult {
	data, format, docErr := document.ValidateEncoded(encoded)
	if docErr != nil {
		logger.WithFields(logrus.Fields{
			"format": string(format),
			"kind":   string(docErr.Kind),
		}).Warn("Document rejected")
		return &domain.DocumentResult{Format: format, Error: docErr}
	}

	sum := sha256.Sum256(data)
	result := &domain.DocumentResult{
		Format:    format,
		SizeBytes: len(data),
		SHA256:    hex.EncodeToString(sum[:]),
	}
	if s.extractor == nil {
		return result
	}

	extraction, err := s.extractor.Extract(ctx, data)
	if err != nil {
		logger.WithError(err).Error("Document extraction failed")
		return nil
	}
	result.Extraction = extraction
	return result
}

func describePatient(p *domain.PatientInfo) string {
	parts := []string{p.Name}
	if p.Age != domain.DefaultPatientInfo {
		parts = append(parts, "age "+p.Age)
	}
	if p.MemberID != "Not provided" {
		parts = append(parts, "member "+p.MemberID)
	}
	return strings.Join(parts, ", ")
}

func joinHistory(items []string, free string) string {
	parts := make([]string, 0, len(items)+1)
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			parts = append(parts, item)
		}
	}
	if free = strings.TrimSpace(free); free != "" {
		parts = append(parts, free)
	}
	return strings.Join(parts, "; ")
}

func orPlaceholder(v, placeholder string) string {
	if v = strings.TrimSpace(v); v == "" {
		return placeholder
	}
	return v
}
