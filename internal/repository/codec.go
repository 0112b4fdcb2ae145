package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const requestColumns = `request_id, patient_info, treatment, insurance, history, provider_notes,
	urgency, status, timestamp, patient, treatment_analysis, document_data,
	decision, decision_reason, confidence_score, missing_documentation,
	alternative_treatments, appeal_guidance, safety_override, original_ai_decision,
	processed_timestamp`

// Default page size for list queries with a non-positive limit.
const defaultListLimit = 50

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// requestDocuments holds the JSON-encoded nested documents of a request.
type requestDocuments struct {
	patient  []byte
	analysis []byte
	document []byte
}

func encodeDocuments(req *domain.Request) (requestDocuments, error) {
	var docs requestDocuments
	var err error
	if docs.patient, err = marshalNullable(req.Patient); err != nil {
		return docs, fmt.Errorf("encoding patient: %w", err)
	}
	if docs.analysis, err = marshalNullable(req.Analysis); err != nil {
		return docs, fmt.Errorf("encoding treatment analysis: %w", err)
	}
	if docs.document, err = marshalNullable(req.Document); err != nil {
		return docs, fmt.Errorf("encoding document data: %w", err)
	}
	return docs, nil
}

func (d requestDocuments) decodeInto(req *domain.Request) error {
	var err error
	if req.Patient, err = unmarshalNullable[domain.PatientInfo](d.patient); err != nil {
		return fmt.Errorf("decoding patient: %w", err)
	}
	if req.Analysis, err = unmarshalNullable[domain.ApprovalAnalysis](d.analysis); err != nil {
		return fmt.Errorf("decoding treatment analysis: %w", err)
	}
	if req.Document, err = unmarshalNullable[domain.DocumentResult](d.document); err != nil {
		return fmt.Errorf("decoding document data: %w", err)
	}
	return nil
}

// decisionColumns is the nullable column set of a stored decision.
type decisionColumns struct {
	decision       *string
	reason         *string
	confidence     *int64
	missing        []byte
	alternatives   []byte
	appeal         *string
	safetyOverride *bool
	original       *string
}

// encodeDecision returns the decision column values in table order.
func encodeDecision(d domain.Decision) ([]any, error) {
	missing, err := json.Marshal(nonNil(d.MissingDocumentation))
	if err != nil {
		return nil, fmt.Errorf("encoding missing documentation: %w", err)
	}
	alternatives, err := json.Marshal(nonNil(d.AlternativeTreatments))
	if err != nil {
		return nil, fmt.Errorf("encoding alternative treatments: %w", err)
	}
	var original *string
	if d.OriginalAIDecision != "" {
		s := string(d.OriginalAIDecision)
		original = &s
	}
	return []any{
		string(d.Decision),
		d.Reason,
		d.ConfidenceScore,
		string(missing),
		string(alternatives),
		d.AppealGuidance,
		d.SafetyOverride,
		original,
	}, nil
}

func (c decisionColumns) toDecision() (*domain.Decision, error) {
	if c.decision == nil {
		return nil, nil
	}
	d := &domain.Decision{
		Decision:       domain.DecisionStatus(*c.decision),
		Reason:         deref(c.reason),
		AppealGuidance: deref(c.appeal),
	}
	if c.confidence != nil {
		d.ConfidenceScore = int(*c.confidence)
	}
	if c.safetyOverride != nil {
		d.SafetyOverride = *c.safetyOverride
	}
	if c.original != nil {
		d.OriginalAIDecision = domain.DecisionStatus(*c.original)
	}
	if err := decodeList(c.missing, &d.MissingDocumentation); err != nil {
		return nil, fmt.Errorf("decoding missing documentation: %w", err)
	}
	if err := decodeList(c.alternatives, &d.AlternativeTreatments); err != nil {
		return nil, fmt.Errorf("decoding alternative treatments: %w", err)
	}
	return d, nil
}

func decodeList(data []byte, out *[]string) error {
	*out = []string{}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
