// Package domain contains the core entities of the prior-authorization workflow:
// requests, treatment categories, insurance rules, extracted clinical facts and
// the decisions rendered for each request.
//
// Everything in this package is plain data plus small invariants. Decision logic
// lives in the service layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TreatmentCategory is the clinical category derived from a treatment description.
type TreatmentCategory string

const (
	CategoryDiabetes        TreatmentCategory = "diabetes"
	CategoryMRI             TreatmentCategory = "mri"
	CategoryPhysicalTherapy TreatmentCategory = "physical_therapy"
	CategorySurgery         TreatmentCategory = "surgery"
	CategoryImaging         TreatmentCategory = "imaging"
	CategoryCancerTreatment TreatmentCategory = "cancer_treatment"
	CategoryMentalHealth    TreatmentCategory = "mental_health"
	CategoryCardiology      TreatmentCategory = "cardiology"
	CategoryOrthopedic      TreatmentCategory = "orthopedic"
	CategoryNone            TreatmentCategory = "none"
)

// CategoryGeneral is the per-insurer fallback rule key. It is never derived
// from treatment text.
const CategoryGeneral = "general"

// IsValid reports whether c is one of the derivable categories or CategoryNone.
func (c TreatmentCategory) IsValid() bool {
	switch c {
	case CategoryDiabetes, CategoryMRI, CategoryPhysicalTherapy, CategorySurgery,
		CategoryImaging, CategoryCancerTreatment, CategoryMentalHealth,
		CategoryCardiology, CategoryOrthopedic, CategoryNone:
		return true
	default:
		return false
	}
}

func (c TreatmentCategory) String() string {
	return string(c)
}

// DecisionStatus is the outcome of a prior-authorization decision.
type DecisionStatus string

const (
	DecisionApproved    DecisionStatus = "APPROVED"
	DecisionDenied      DecisionStatus = "DENIED"
	DecisionConditional DecisionStatus = "CONDITIONAL"
	DecisionPending     DecisionStatus = "PENDING"
)

// IsValid reports whether s is one of the four decision values.
func (s DecisionStatus) IsValid() bool {
	switch s {
	case DecisionApproved, DecisionDenied, DecisionConditional, DecisionPending:
		return true
	default:
		return false
	}
}

func (s DecisionStatus) String() string {
	return string(s)
}

// ParseDecisionStatus normalizes a raw decision value. Unknown values map to
// PENDING and ok is false.
func ParseDecisionStatus(raw string) (status DecisionStatus, ok bool) {
	s := DecisionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return DecisionPending, false
	}
	return s, true
}

// RequestStatus tracks where a stored request is in its lifecycle.
type RequestStatus string

const (
	StatusAnalyzed  RequestStatus = "analyzed"
	StatusProcessed RequestStatus = "processed"
)

// IsValid validates the request status.
func (s RequestStatus) IsValid() bool {
	return s == StatusAnalyzed || s == StatusProcessed
}

// Placeholder values substituted for missing request fields before a request
// enters the decision pipeline.
const (
	DefaultPatientInfo   = "Not specified"
	DefaultTreatment     = "Not specified"
	DefaultInsurance     = "Unknown"
	DefaultHistory       = "Not provided"
	DefaultUrgency       = "Standard"
	DefaultProviderNotes = "No notes"
)

// Validation errors for request data
var (
	ErrNotFound           = errors.New("not found")
	ErrMissingRequestID   = errors.New("request_id is required")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrStoreUnavailable   = errors.New("request store unavailable")
	ErrInvalidCategory    = errors.New("invalid treatment category")
	ErrInvalidDecision    = errors.New("invalid decision value")
	ErrInvalidConfidence  = errors.New("confidence score must be between 0 and 100")
	ErrInvalidRequirement = errors.New("unknown requirement token")
)

// PatientInfo is the structured patient record captured at intake.
type PatientInfo struct {
	Name           string   `json:"name"`
	Age            string   `json:"age"`
	InsuranceType  string   `json:"insurance_type"`
	MemberID       string   `json:"member_id"`
	MedicalHistory []string `json:"medical_history"`
}

// Request is a prior-authorization request. It is written once at intake and
// afterwards only its decision fields change.
type Request struct {
	ID            string        `json:"request_id"`
	PatientInfo   string        `json:"patient_info"`
	Treatment     string        `json:"treatment"`
	Insurance     string        `json:"insurance"`
	History       string        `json:"history"`
	ProviderNotes string        `json:"provider_notes"`
	Urgency       string        `json:"urgency"`
	Status        RequestStatus `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`

	Patient  *PatientInfo      `json:"patient,omitempty"`
	Analysis *ApprovalAnalysis `json:"treatment_analysis,omitempty"`
	Document *DocumentResult   `json:"document_data,omitempty"`

	Decision    *Decision  `json:"decision,omitempty"`
	ProcessedAt *time.Time `json:"processed_timestamp,omitempty"`
}

// WithDefaults returns a copy of r with blank text fields replaced by their
// placeholders and surrounding whitespace trimmed.
func (r Request) WithDefaults() Request {
	r.PatientInfo = orDefault(r.PatientInfo, DefaultPatientInfo)
	r.Treatment = orDefault(r.Treatment, DefaultTreatment)
	r.Insurance = orDefault(r.Insurance, DefaultInsurance)
	r.History = orDefault(r.History, DefaultHistory)
	r.Urgency = orDefault(r.Urgency, DefaultUrgency)
	r.ProviderNotes = orDefault(r.ProviderNotes, DefaultProviderNotes)
	return r
}

// Validate checks the fields required to persist a request.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingRequestID
	}
	if r.Status != "" && !r.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidRequest, r.Status)
	}
	return nil
}

// LogFields returns structured logging fields for the request.
func (r *Request) LogFields() map[string]any {
	return map[string]any{
		"request_id": r.ID,
		"insurer":    r.Insurance,
		"urgency":    r.Urgency,
		"status":     string(r.Status),
	}
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

// ApprovalAnalysis is the informational approval estimate computed at intake.
type ApprovalAnalysis struct {
	ApprovalProbability float64  `json:"approval_probability"`
	Requirements        []string `json:"requirements"`
	TypicalApprovalTime string   `json:"typical_approval_time"`
	NextSteps           []string `json:"next_steps"`
}
