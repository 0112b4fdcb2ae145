package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Missing request id",
			code:      ErrCodeInvalidInput,
			message:   "request_id is required",
			details:   "the request body did not carry a request_id",
			requestID: "corr-123",
		},
		{
			name:      "Store outage",
			code:      ErrCodeStoreUnavailable,
			message:   "Request store unavailable",
			details:   "connection refused",
			requestID: "corr-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("patient_name", "is required", "")

	expected := "validation error for field 'patient_name': is required"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Error("ValidationError should match ErrInvalidRequest")
	}
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("status 403")
	err := NewGenerationError(GenerationAccessDenied, "model access denied", cause)

	if !errors.Is(err, cause) {
		t.Error("GenerationError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("calling generator: %w", err)
	var genErr *GenerationError
	if !errors.As(wrapped, &genErr) {
		t.Fatal("expected errors.As to find GenerationError")
	}
	if genErr.Kind != GenerationAccessDenied {
		t.Errorf("Expected kind %s, got %s", GenerationAccessDenied, genErr.Kind)
	}
}

func TestFallbackReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"validation", NewGenerationError(GenerationValidation, "bad body", nil), "the decision request was rejected by the generation service"},
		{"access denied", NewGenerationError(GenerationAccessDenied, "denied", nil), "access to the generation model was denied"},
		{"model unavailable", NewGenerationError(GenerationModelUnavailable, "warming", nil), "the generation model is not available"},
		{"malformed", NewGenerationError(GenerationMalformedResponse, "no results", nil), "the generation service returned an unusable response"},
		{"other kind", NewGenerationError(GenerationOther, "boom", nil), "generation service error: boom"},
		{"plain error", errors.New("context deadline exceeded"), "generation service error: context deadline exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackReason(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDocumentErrorMatchesSentinels(t *testing.T) {
	tests := []struct {
		kind     DocumentErrorKind
		sentinel error
	}{
		{DocumentUnsupportedFormat, ErrUnsupportedFormat},
		{DocumentCorrupt, ErrCorruptDocument},
		{DocumentTooLarge, ErrDocumentTooLarge},
		{DocumentTransportFailure, ErrExtractionTransport},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewDocumentError(tt.kind, FormatUnknown, "rejected")
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Expected %s to match %v", tt.kind, tt.sentinel)
			}
		})
	}

	cause := errors.New("dial tcp: connection refused")
	err := NewDocumentError(DocumentTransportFailure, FormatPDF, "extraction failed")
	err.Err = cause
	if !errors.Is(err, cause) {
		t.Error("DocumentError should unwrap to its transport cause")
	}
}

func TestErrorConstants(t *testing.T) {
	expected := map[string]string{
		ErrCodeInvalidInput:     "INVALID_INPUT",
		ErrCodeNotFound:         "NOT_FOUND",
		ErrCodeStoreUnavailable: "STORE_UNAVAILABLE",
		ErrCodeRateLimit:        "RATE_LIMIT_EXCEEDED",
		ErrCodeUnsupportedMedia: "UNSUPPORTED_DOCUMENT",
		ErrCodeInternalServer:   "INTERNAL_SERVER_ERROR",
		ErrCodeValidation:       "VALIDATION_ERROR",
	}

	for actual, want := range expected {
		if actual != want {
			t.Errorf("Expected %s, got %s", want, actual)
		}
	}
}
