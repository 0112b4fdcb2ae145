package domain

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnsupportedMedia = "UNSUPPORTED_DOCUMENT"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeTimeout          = "REQUEST_TIMEOUT"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets callers match any ValidationError against ErrInvalidRequest.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// GenerationErrorKind classifies failures of the generative text service.
type GenerationErrorKind string

const (
	GenerationValidation        GenerationErrorKind = "ValidationException"
	GenerationAccessDenied      GenerationErrorKind = "AccessDeniedException"
	GenerationModelUnavailable  GenerationErrorKind = "ModelNotReadyException"
	GenerationMalformedResponse GenerationErrorKind = "MalformedResponse"
	GenerationOther             GenerationErrorKind = "ServiceError"
)

// GenerationError is returned by generator clients. The pipeline converts
// every GenerationError into a fallback decision.
type GenerationError struct {
	Kind    GenerationErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError creates a GenerationError wrapping cause.
func NewGenerationError(kind GenerationErrorKind, message string, cause error) *GenerationError {
	return &GenerationError{Kind: kind, Message: message, Err: cause}
}

// FallbackReason renders the human-readable reason used in the fallback
// decision for a generation failure.
func FallbackReason(err error) string {
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		return fmt.Sprintf("generation service error: %v", err)
	}
	switch genErr.Kind {
	case GenerationValidation:
		return "the decision request was rejected by the generation service"
	case GenerationAccessDenied:
		return "access to the generation model was denied"
	case GenerationModelUnavailable:
		return "the generation model is not available"
	case GenerationMalformedResponse:
		return "the generation service returned an unusable response"
	default:
		return fmt.Sprintf("generation service error: %s", genErr.Message)
	}
}
