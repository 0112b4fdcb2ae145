package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/document"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/middleware"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
)

const maxListLimit = 500

// handleHealth reports the status of every registered component.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	components := gin.H{}
	for _, check := range s.deps.Checks {
		if err := check.Check(ctx); err != nil {
			s.logger.WithError(err).WithField("component", check.Name).Warn("Health check failed")
			components[check.Name] = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[check.Name] = "healthy"
	}

	body := gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"components": components,
	}
	if s.deps.ExtractionCache != nil {
		body["extraction_cache"] = s.deps.ExtractionCache.GetCacheStats()
	}
	c.JSON(code, body)
}

// handleSubmitRequest registers a new prior-authorization request.
func (s *Server) handleSubmitRequest(c *gin.Context) {
	var in service.IntakeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}

	result, err := s.deps.Intake.Submit(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// handleGetRequest returns a stored request with its decision, if any.
func (s *Server) handleGetRequest(c *gin.Context) {
	req, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, storeError(err))
		return
	}
	c.JSON(http.StatusOK, req)
}

// handleListRequests lists requests, newest first, optionally by status.
func (s *Server) handleListRequests(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			s.badRequest(c, "Invalid limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	var (
		requests []*domain.Request
		err      error
	)
	if raw := c.Query("status"); raw != "" {
		status := domain.RequestStatus(strings.ToLower(raw))
		if !status.IsValid() {
			s.badRequest(c, "Invalid status", "status must be analyzed or processed")
			return
		}
		requests, err = s.deps.Store.ListByStatus(c.Request.Context(), status, limit)
	} else {
		requests, err = s.deps.Store.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		s.writeError(c, storeError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// handleProcessRequest runs the decision pipeline for the request in the path.
func (s *Server) handleProcessRequest(c *gin.Context) {
	s.process(c, c.Param("id"))
}

type decisionBody struct {
	RequestID string `json:"request_id"`
}

// handleProcessDecision runs the decision pipeline for {"request_id": ...}.
func (s *Server) handleProcessDecision(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}
	s.process(c, body.RequestID)
}

func (s *Server) process(c *gin.Context, requestID string) {
	result, err := s.deps.Decisions.Process(c.Request.Context(), requestID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type categorizeBody struct {
	Treatment string `json:"treatment"`
}

// handleCategorize maps a treatment description to its category.
func (s *Server) handleCategorize(c *gin.Context) {
	var body categorizeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(body.Treatment) == "" {
		s.badRequest(c, "treatment is required", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"treatment": body.Treatment,
		"category":  service.CategorizeTreatment(body.Treatment),
	})
}

// handleLookupRule resolves the rule for an insurer and category. Unknown
// combinations resolve to the insurer's general rule or the empty rule.
func (s *Server) handleLookupRule(c *gin.Context) {
	insurer := c.Param("insurer")
	category := c.DefaultQuery("category", string(domain.CategoryGeneral))

	canonical, known := s.deps.Rules.CanonicalInsurer(insurer)
	c.JSON(http.StatusOK, gin.H{
		"insurer":       insurer,
		"canonical":     canonical,
		"known_insurer": known,
		"category":      category,
		"rule":          s.deps.Rules.Lookup(insurer, category),
	})
}

type documentBody struct {
	Document string `json:"document"`
}

// handleValidateDocument checks a base64 document without extracting it.
// Rejections are reported in the body with conversion suggestions.
func (s *Server) handleValidateDocument(c *gin.Context) {
	var body documentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(body.Document) == "" {
		s.badRequest(c, "document is required", "")
		return
	}

	data, format, docErr := document.ValidateEncoded(body.Document)
	if docErr != nil {
		c.JSON(http.StatusOK, gin.H{
			"valid":  false,
			"format": format,
			"error":  docErr,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"format":     format,
		"size_bytes": len(data),
	})
}

// storeError maps raw store failures onto ErrStoreUnavailable so they are
// reported as 503 rather than 500.
func storeError(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return errors.Join(domain.ErrStoreUnavailable, err)
}

func (s *Server) badRequest(c *gin.Context, message, details string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, domain.NewAPIError(
		domain.ErrCodeInvalidInput, message, details, c.GetString(middleware.CorrelationIDKey),
	))
}

// writeError maps service errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	correlationID := c.GetString(middleware.CorrelationIDKey)

	var (
		status  int
		code    string
		message string
		details string
	)
	switch {
	case errors.Is(err, domain.ErrMissingRequestID), errors.Is(err, domain.ErrInvalidRequest):
		status, code, message, details = http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, domain.ErrCodeNotFound, "Request not found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		status, code, message = http.StatusServiceUnavailable, domain.ErrCodeStoreUnavailable, "Request store unavailable"
	default:
		status, code, message = http.StatusInternalServerError, domain.ErrCodeInternalServer, "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", correlationID).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, correlationID))
}
