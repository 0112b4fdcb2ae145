package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MaxDocumentBytes is the size ceiling accepted by the extraction service.
const MaxDocumentBytes = 10 * 1024 * 1024

// DocumentFormat is the format detected from a document's leading bytes.
type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatJPEG    DocumentFormat = "jpeg"
	FormatPNG     DocumentFormat = "png"
	FormatOffice  DocumentFormat = "office"
	FormatGIF     DocumentFormat = "gif"
	FormatBMP     DocumentFormat = "bmp"
	FormatHTML    DocumentFormat = "html"
	FormatXML     DocumentFormat = "xml"
	FormatJSON    DocumentFormat = "json"
	FormatUnknown DocumentFormat = "unknown"
)

// IsSupported reports whether the extraction service accepts the format.
func (f DocumentFormat) IsSupported() bool {
	return f == FormatPDF || f == FormatJPEG || f == FormatPNG
}

// DocumentErrorKind classifies a document rejection or extraction failure.
type DocumentErrorKind string

const (
	DocumentUnsupportedFormat DocumentErrorKind = "UNSUPPORTED_FORMAT"
	DocumentCorrupt           DocumentErrorKind = "CORRUPT"
	DocumentTooLarge          DocumentErrorKind = "TOO_LARGE"
	DocumentTransportFailure  DocumentErrorKind = "TRANSPORT_FAILURE"
)

// Document errors, matched with errors.Is against a *DocumentError.
var (
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrCorruptDocument     = errors.New("corrupt document")
	ErrDocumentTooLarge    = errors.New("document too large")
	ErrExtractionTransport = errors.New("document extraction transport failure")
)

// DocumentError is a typed document rejection. Suggestions tell the submitter
// how to convert the document into something the extractor accepts.
type DocumentError struct {
	Kind        DocumentErrorKind `json:"kind"`
	Format      DocumentFormat    `json:"format"`
	Message     string            `json:"error"`
	Suggestions []string          `json:"suggestions"`
	Err         error             `json:"-"`
}

// Error implements the error interface
func (e *DocumentError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(e.Suggestions, "; "))
}

// Unwrap exposes the sentinel matching the error kind, or the transport cause.
func (e *DocumentError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case DocumentUnsupportedFormat:
		sentinel = ErrUnsupportedFormat
	case DocumentCorrupt:
		sentinel = ErrCorruptDocument
	case DocumentTooLarge:
		sentinel = ErrDocumentTooLarge
	case DocumentTransportFailure:
		sentinel = ErrExtractionTransport
	}
	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDocumentError creates a DocumentError.
func NewDocumentError(kind DocumentErrorKind, format DocumentFormat, message string, suggestions ...string) *DocumentError {
	return &DocumentError{
		Kind:        kind,
		Format:      format,
		Message:     message,
		Suggestions: suggestions,
	}
}

// ExtractedField is one labeled value returned by the extraction service.
// Exactly one of Text or Items is set.
type ExtractedField struct {
	Text       string   `json:"text,omitempty"`
	Items      []string `json:"items,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// ExtractionResult is the structured output of the extraction service.
type ExtractionResult struct {
	DocumentType string                    `json:"document_type"`
	Fields       map[string]ExtractedField `json:"extracted_fields"`
	Confidence   float64                   `json:"confidence"`
}

// DocumentResult is what gets stored on a request for an uploaded document:
// either an extraction or an explicit rejection.
type DocumentResult struct {
	Format     DocumentFormat    `json:"format"`
	SizeBytes  int               `json:"size_bytes"`
	SHA256     string            `json:"sha256,omitempty"`
	Extraction *ExtractionResult `json:"extraction,omitempty"`
	Error      *DocumentError    `json:"error,omitempty"`
}
