// Package document checks uploaded documents before they are sent to the
// extraction service. Only PDF, JPEG and PNG up to domain.MaxDocumentBytes
// are accepted; everything else is rejected with conversion suggestions.
package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

var signatures = []struct {
	format domain.DocumentFormat
	magic  []byte
}{
	{domain.FormatPDF, []byte("%PDF-")},
	{domain.FormatJPEG, []byte{0xFF, 0xD8, 0xFF}},
	{domain.FormatPNG, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{domain.FormatOffice, []byte("PK\x03\x04")},
	{domain.FormatOffice, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
	{domain.FormatGIF, []byte("GIF87a")},
	{domain.FormatGIF, []byte("GIF89a")},
	{domain.FormatBMP, []byte("BM")},
}

var suggestions = map[domain.DocumentFormat][]string{
	domain.FormatOffice: {
		"Export the document to PDF from your office application",
		"Alternatively print the document to PDF",
	},
	domain.FormatGIF: {"Convert the image to PNG or JPEG"},
	domain.FormatBMP: {"Convert the image to PNG or JPEG"},
	domain.FormatHTML: {
		"Print the page to PDF from your browser",
	},
	domain.FormatXML:     {"Print or export the document to PDF"},
	domain.FormatJSON:    {"Print or export the document to PDF"},
	domain.FormatUnknown: {"Submit the document as PDF, JPEG or PNG"},
}

// DetectFormat sniffs the format from the leading bytes.
func DetectFormat(data []byte) domain.DocumentFormat {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.format
		}
	}

	text := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF")), " \t\r\n")
	head := strings.ToLower(string(text[:min(len(text), 64)]))
	switch {
	case strings.HasPrefix(head, "<!doctype html"), strings.HasPrefix(head, "<html"):
		return domain.FormatHTML
	case strings.HasPrefix(head, "<?xml"):
		return domain.FormatXML
	case strings.HasPrefix(head, "{"), strings.HasPrefix(head, "["):
		return domain.FormatJSON
	}
	return domain.FormatUnknown
}

// Validate returns the detected format, or a typed rejection when the
// document cannot be sent to the extraction service.
func Validate(data []byte) (domain.DocumentFormat, *domain.DocumentError) {
	if len(data) == 0 {
		return domain.FormatUnknown, domain.NewDocumentError(domain.DocumentCorrupt, domain.FormatUnknown,
			"document is empty", "Re-scan or re-export the document and upload it again")
	}

	format := DetectFormat(data)
	if len(data) > domain.MaxDocumentBytes {
		return format, domain.NewDocumentError(domain.DocumentTooLarge, format,
			fmt.Sprintf("document is %d bytes, the limit is %d bytes", len(data), domain.MaxDocumentBytes),
			"Compress the document below 10MB",
			"Split the document into several files below 10MB")
	}

	if !format.IsSupported() {
		return format, domain.NewDocumentError(domain.DocumentUnsupportedFormat, format,
			fmt.Sprintf("%s documents are not supported", format),
			suggestions[format]...)
	}
	return format, nil
}

// DecodeBase64 decodes an uploaded document. Undecodable payloads are
// reported as corrupt documents.
func DecodeBase64(encoded string) ([]byte, *domain.DocumentError) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		docErr := domain.NewDocumentError(domain.DocumentCorrupt, domain.FormatUnknown,
			"document is not valid base64", "Encode the file with standard base64 before uploading")
		docErr.Err = err
		return nil, docErr
	}
	return data, nil
}

// ValidateEncoded decodes and validates a base64 document in one step.
func ValidateEncoded(encoded string) ([]byte, domain.DocumentFormat, *domain.DocumentError) {
	data, docErr := DecodeBase64(encoded)
	if docErr != nil {
		return nil, domain.FormatUnknown, docErr
	}
	format, docErr := Validate(data)
	if docErr != nil {
		return nil, format, docErr
	}
	return data, format, nil
}
