package external

import (
	"context"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const defaultStaticResponse = `{"decision": "PENDING", "reason": "No generation model configured", "confidence_score": 50, "missing_documentation": [], "alternative_treatments": [], "appeal_guidance": "Contact customer service for a manual review"}`

// StaticGenerator returns the same response for every prompt. It backs local
// development and demos where no model endpoint is configured.
type StaticGenerator struct {
	response string
}

// NewStaticGenerator creates a static generator. An empty response selects a
// neutral PENDING decision.
func NewStaticGenerator(response string) *StaticGenerator {
	if response == "" {
		response = defaultStaticResponse
	}
	return &StaticGenerator{response: response}
}

// Name returns the provider name
func (g *StaticGenerator) Name() string {
	return "static"
}

// Generate returns the configured response.
func (g *StaticGenerator) Generate(ctx context.Context, _ string, _ domain.GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewGenerationError(domain.GenerationOther, "request cancelled", err)
	}
	return g.response, nil
}

// StaticExtractor returns a fixed prescription extraction.
type StaticExtractor struct{}

// NewStaticExtractor creates a static extractor
func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{}
}

// Extract ignores the document and returns the prescription fixture.
func (e *StaticExtractor) Extract(ctx context.Context, _ []byte) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.DocumentError{
			Kind:    domain.DocumentTransportFailure,
			Format:  domain.FormatUnknown,
			Message: "extraction cancelled",
			Err:     err,
		}
	}
	return &domain.ExtractionResult{
		DocumentType: "prescription",
		Fields: map[string]domain.ExtractedField{
			"medication": {Text: "Ozempic", Confidence: 0.97},
			"dosage":     {Text: "0.5mg weekly", Confidence: 0.95},
			"prescriber": {Text: "Dr. Smith", Confidence: 0.94},
			"date":       {Text: "2025-06-10", Confidence: 0.96},
			"icd_codes":  {Items: []string{"E11.9"}, Confidence: 0.93},
		},
		Confidence: 0.95,
	}, nil
}
