package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/document"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// HTTPExtractor sends documents to a remote extraction service.
//
// The service accepts the raw document bytes on POST {base}/extract and
// answers with
//
//	{"document_type": "...", "extracted_fields": {"name": "text" | ["a", "b"]},
//	 "field_confidence": {"name": 0.9}, "confidence": 0.95}
type HTTPExtractor struct {
	baseURL    string
	apiKey     string
	maxBytes   int
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

type extractionResponse struct {
	DocumentType    string                     `json:"document_type"`
	ExtractedFields map[string]json.RawMessage `json:"extracted_fields"`
	FieldConfidence map[string]float64         `json:"field_confidence"`
	Confidence      float64                    `json:"confidence"`
}

// NewHTTPExtractor creates a new HTTP extraction client
func NewHTTPExtractor(cfg domain.ExtractionConfig) (*HTTPExtractor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("extraction base url is required for provider http")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = domain.MaxDocumentBytes
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPExtractor{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: timeout},
		rateLimit:  rate.NewLimiter(limit, 1),
	}, nil
}

// Extract validates the document format and posts it to the service.
func (e *HTTPExtractor) Extract(ctx context.Context, data []byte) (*domain.ExtractionResult, error) {
	format, docErr := document.Validate(data)
	if docErr != nil {
		return nil, docErr
	}
	if len(data) > e.maxBytes {
		return nil, domain.NewDocumentError(domain.DocumentTooLarge, format,
			fmt.Sprintf("document is %d bytes, limit is %d", len(data), e.maxBytes),
			"Compress the document", "Split the document into smaller files")
	}

	if err := e.rateLimit.Wait(ctx); err != nil {
		return nil, transportError(format, "rate limit wait cancelled", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(data))
	if err != nil {
		return nil, transportError(format, "building request", err)
	}
	req.Header.Set("Content-Type", mimeType(format))
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, transportError(format, "calling extraction service", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return nil, domain.NewDocumentError(domain.DocumentUnsupportedFormat, format,
			"extraction service rejected the document format", "Convert the document to PDF")
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, domain.NewDocumentError(domain.DocumentTooLarge, format,
			"extraction service rejected the document size", "Compress the document")
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, domain.NewDocumentError(domain.DocumentCorrupt, format,
			"extraction service could not read the document", "Re-scan or re-export the document")
	case resp.StatusCode != http.StatusOK:
		return nil, transportError(format, fmt.Sprintf("extraction service returned status %d", resp.StatusCode), nil)
	}

	var body extractionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, transportError(format, "decoding extraction response", err)
	}

	result := &domain.ExtractionResult{
		DocumentType: body.DocumentType,
		Fields:       make(map[string]domain.ExtractedField, len(body.ExtractedFields)),
		Confidence:   body.Confidence,
	}
	for name, raw := range body.ExtractedFields {
		field, ok := decodeField(raw)
		if !ok {
			continue
		}
		field.Confidence = body.FieldConfidence[name]
		result.Fields[name] = field
	}
	return result, nil
}

// decodeField accepts a string or a list of strings.
func decodeField(raw json.RawMessage) (domain.ExtractedField, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return domain.ExtractedField{Text: text}, true
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		return domain.ExtractedField{Items: items}, true
	}
	return domain.ExtractedField{}, false
}

func transportError(format domain.DocumentFormat, msg string, cause error) *domain.DocumentError {
	return &domain.DocumentError{
		Kind:        domain.DocumentTransportFailure,
		Format:      format,
		Message:     msg,
		Suggestions: []string{"Retry later"},
		Err:         cause,
	}
}

func mimeType(format domain.DocumentFormat) string {
	switch format {
	case domain.FormatPDF:
		return "application/pdf"
	case domain.FormatJPEG:
		return "image/jpeg"
	case domain.FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
