package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/document"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
)

// Tool names
const (
	ToolEvaluate         = "evaluate_prior_authorization"
	ToolCategorize       = "categorize_treatment"
	ToolLookupRule       = "lookup_insurance_rule"
	ToolCheckCompliance  = "check_rule_compliance"
	ToolValidateDocument = "validate_document_format"
)

// ToolNames lists every registered tool.
var ToolNames = []string{ToolEvaluate, ToolCategorize, ToolLookupRule, ToolCheckCompliance, ToolValidateDocument}

// EvaluateParams defines parameters for evaluate_prior_authorization
type EvaluateParams struct {
	RequestID     string `json:"request_id,omitempty" jsonschema:"optional id; a new one is generated when empty"`
	PatientInfo   string `json:"patient_info,omitempty" jsonschema:"free-text patient description"`
	Treatment     string `json:"treatment" jsonschema:"requested treatment"`
	Insurance     string `json:"insurance" jsonschema:"insurer name"`
	History       string `json:"history,omitempty" jsonschema:"medical history"`
	ProviderNotes string `json:"provider_notes,omitempty" jsonschema:"provider notes"`
	Urgency       string `json:"urgency,omitempty" jsonschema:"Standard or Urgent"`
}

// CategorizeParams defines parameters for categorize_treatment
type CategorizeParams struct {
	Treatment string `json:"treatment" jsonschema:"treatment description"`
}

// LookupRuleParams defines parameters for lookup_insurance_rule
type LookupRuleParams struct {
	Insurer  string `json:"insurer" jsonschema:"insurer name or alias"`
	Category string `json:"category,omitempty" jsonschema:"treatment category; general when empty"`
}

// ComplianceParams defines parameters for check_rule_compliance
type ComplianceParams struct {
	Treatment     string `json:"treatment" jsonschema:"requested treatment"`
	Insurance     string `json:"insurance" jsonschema:"insurer name"`
	History       string `json:"history,omitempty" jsonschema:"medical history"`
	ProviderNotes string `json:"provider_notes,omitempty" jsonschema:"provider notes"`
}

// ValidateDocumentParams defines parameters for validate_document_format
type ValidateDocumentParams struct {
	Document string `json:"document" jsonschema:"base64-encoded document"`
}

// DocumentCheck is the validate_document_format result.
type DocumentCheck struct {
	Valid     bool                  `json:"valid"`
	Format    domain.DocumentFormat `json:"format"`
	SizeBytes int                   `json:"size_bytes,omitempty"`
	Error     *domain.DocumentError `json:"error,omitempty"`
}

// handleEvaluate stores the inline request and runs the decision pipeline on it.
func (s *Server) handleEvaluate(ctx context.Context, _ *mcp.CallToolRequest, params EvaluateParams) (*mcp.CallToolResult, any, error) {
	logger := s.logger.WithField("tool", ToolEvaluate)
	logger.Info("Tool invoked")

	if strings.TrimSpace(params.Treatment) == "" || strings.TrimSpace(params.Insurance) == "" {
		return errorResult("Missing required parameter", errors.New("treatment and insurance are required")), nil, nil
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	id := strings.TrimSpace(params.RequestID)
	if id == "" {
		id = uuid.NewString()
	}
	req := &domain.Request{
		ID:            id,
		PatientInfo:   params.PatientInfo,
		Treatment:     params.Treatment,
		Insurance:     params.Insurance,
		History:       params.History,
		ProviderNotes: params.ProviderNotes,
		Urgency:       params.Urgency,
		Status:        domain.StatusAnalyzed,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.deps.Store.Create(ctx, req); err != nil {
		logger.WithError(err).WithField("request_id", id).Error("Failed to store request")
		return errorResult("Failed to store request", err), nil, nil
	}

	result, err := s.deps.Decisions.Process(ctx, id)
	if err != nil {
		return errorResult("Decision pipeline failed", err), nil, nil
	}
	return jsonResult(result)
}

// handleCategorize maps a treatment to its category.
func (s *Server) handleCategorize(_ context.Context, _ *mcp.CallToolRequest, params CategorizeParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Treatment) == "" {
		return errorResult("Missing required parameter", errors.New("treatment is required")), nil, nil
	}
	return jsonResult(map[string]any{
		"treatment": params.Treatment,
		"category":  service.CategorizeTreatment(params.Treatment),
	})
}

// handleLookupRule resolves an insurance rule.
func (s *Server) handleLookupRule(_ context.Context, _ *mcp.CallToolRequest, params LookupRuleParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Insurer) == "" {
		return errorResult("Missing required parameter", errors.New("insurer is required")), nil, nil
	}
	category := params.Category
	if category == "" {
		category = domain.CategoryGeneral
	}
	canonical, known := s.deps.Rules.CanonicalInsurer(params.Insurer)
	return jsonResult(map[string]any{
		"insurer":       params.Insurer,
		"canonical":     canonical,
		"known_insurer": known,
		"category":      category,
		"rule":          s.deps.Rules.Lookup(params.Insurer, category),
	})
}

// handleCheckCompliance runs the deterministic half of the pipeline.
func (s *Server) handleCheckCompliance(_ context.Context, _ *mcp.CallToolRequest, params ComplianceParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Treatment) == "" || strings.TrimSpace(params.Insurance) == "" {
		return errorResult("Missing required parameter", errors.New("treatment and insurance are required")), nil, nil
	}
	assessment := s.deps.Decisions.Assess(&domain.Request{
		Treatment:     params.Treatment,
		Insurance:     params.Insurance,
		History:       params.History,
		ProviderNotes: params.ProviderNotes,
	})
	return jsonResult(assessment)
}

// handleValidateDocument checks a document's format and size.
func (s *Server) handleValidateDocument(_ context.Context, _ *mcp.CallToolRequest, params ValidateDocumentParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Document) == "" {
		return errorResult("Missing required parameter", errors.New("document is required")), nil, nil
	}
	data, format, docErr := document.ValidateEncoded(params.Document)
	check := DocumentCheck{Valid: docErr == nil, Format: format, Error: docErr}
	if docErr == nil {
		check.SizeBytes = len(data)
	}
	return jsonResult(check)
}

// jsonResult renders v as the tool's text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult creates a standardized error result for tool calls
func errorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
