package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/repository"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/rules"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/service"
	"github.com/Cr4zy5h4rk/smart-prior-auth/pkg/external"
)

const approvingResponse = `{"decision": "APPROVED", "reason": "Criteria met", "confidence_score": 88, "missing_documentation": [], "alternative_treatments": [], "appeal_guidance": ""}`

func init() {
	gin.SetMode(gin.TestMode)
}

type staticConfig struct {
	cfg *domain.Config
}

func (s staticConfig) GetConfig() *domain.Config                   { return s.cfg }
func (s staticConfig) GetDatabaseConfig() *domain.DatabaseConfig   { return &s.cfg.Database }
func (s staticConfig) GetServerConfig() *domain.ServerConfig       { return &s.cfg.Server }
func (s staticConfig) GetGeneratorConfig() *domain.GeneratorConfig { return &s.cfg.Generator }
func (s staticConfig) Validate() error                             { return nil }
func (s staticConfig) Reload() error                               { return nil }

// failingStore fails every call with a non-domain error.
type failingStore struct{}

var errDisk = errors.New("disk I/O error")

func (failingStore) Get(context.Context, string) (*domain.Request, error) { return nil, errDisk }
func (failingStore) Create(context.Context, *domain.Request) error       { return errDisk }
func (failingStore) UpdateDecision(context.Context, string, domain.DecisionUpdate) error {
	return errDisk
}
func (failingStore) ListByStatus(context.Context, domain.RequestStatus, int) ([]*domain.Request, error) {
	return nil, errDisk
}
func (failingStore) ListRecent(context.Context, int) ([]*domain.Request, error) {
	return nil, errDisk
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestServer(t *testing.T, store domain.RequestStore, rateLimit domain.RateLimitConfig, checks ...HealthCheck) *Server {
	t.Helper()
	logger := testLogger()
	repo := rules.Default()
	cfg := &domain.Config{
		Server:    domain.ServerConfig{Port: 8080},
		RateLimit: rateLimit,
		Logging:   domain.LoggingConfig{Level: "info"},
	}

	extractor := service.NewCachedExtractor(external.NewStaticExtractor(), nil, nil, 0, logger)
	params := domain.GenerationParams{MaxTokens: 512, Temperature: 0.1, TopP: 0.8}

	return NewServer(staticConfig{cfg: cfg}, Dependencies{
		Intake:          service.NewIntakeService(logger, store, extractor, repo),
		Decisions:       service.NewDecisionService(logger, store, external.NewStaticGenerator(approvingResponse), repo, params),
		Store:           store,
		Rules:           repo,
		ExtractionCache: extractor,
		Checks:          checks,
	}, logger)
}

func newSQLiteServer(t *testing.T) *Server {
	t.Helper()
	store, err := repository.NewSQLiteRequestStore(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return newTestServer(t, store, domain.RateLimitConfig{})
}

func doJSON(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, failingStore{}, domain.RateLimitConfig{},
		HealthCheck{Name: "request_store", Check: func(context.Context) error { return nil }})

	w := doJSON(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, map[string]any{"request_store": "healthy"}, body["components"])
	assert.Contains(t, body, "extraction_cache")
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer(t, failingStore{}, domain.RateLimitConfig{},
		HealthCheck{Name: "request_store", Check: func(context.Context) error { return errDisk }})

	w := doJSON(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestCORSPreflight(t *testing.T) {
	s := newSQLiteServer(t)

	w := doJSON(s, http.MethodOptions, "/api/v1/requests", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	w = doJSON(s, http.MethodGet, "/health", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestRequestLifecycle(t *testing.T) {
	s := newSQLiteServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/requests", service.IntakeRequest{
		PatientName:   "Jane Smith",
		Age:           "38",
		InsuranceType: "Aetna",
		TreatmentType: "MRI Knee",
		History:       "Knee pain for 3 weeks, no x-ray performed",
		ProviderNotes: "Patient requests imaging for peace of mind",
		Document:      base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\n%%EOF")),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created service.IntakeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.RequestID)
	assert.Equal(t, domain.StatusAnalyzed, created.Status)
	assert.InDelta(t, 0.65, created.EstimatedApprovalChance, 1e-9)
	require.NotNil(t, created.Document)
	require.NotNil(t, created.Document.Extraction)

	w = doJSON(s, http.MethodGet, "/api/v1/requests/"+created.RequestID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored domain.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, "MRI Knee", stored.Treatment)
	assert.Nil(t, stored.Decision)

	w = doJSON(s, http.MethodPost, "/api/v1/requests/"+created.RequestID+"/decision", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result domain.DecisionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.DecisionDenied, result.Decision.Decision)
	assert.True(t, result.Decision.SafetyOverride)
	assert.Equal(t, domain.DecisionApproved, result.Decision.OriginalAIDecision)
	assert.NotEmpty(t, result.Validation.Violations)
	assert.True(t, result.Persisted)

	w = doJSON(s, http.MethodGet, "/api/v1/requests?status=processed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Requests []domain.Request `json:"requests"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, domain.DecisionDenied, listed.Requests[0].Decision.Decision)

	w = doJSON(s, http.MethodGet, "/api/v1/requests?status=analyzed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestProcessDecisionBody(t *testing.T) {
	s := newSQLiteServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/requests", service.IntakeRequest{
		PatientName:   "John Doe",
		InsuranceType: "BlueCross",
		TreatmentType: "Ozempic",
		History:       "Type 2 diabetes; HbA1c 8.4%; failed 2 prior medications (metformin, glipizide)",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created service.IntakeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(s, http.MethodPost, "/api/v1/decisions", map[string]string{"request_id": created.RequestID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result domain.DecisionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.DecisionApproved, result.Decision.Decision)
	assert.Equal(t, 88, result.Decision.ConfidenceScore)
	assert.Equal(t, domain.TreatmentCategory("diabetes"), result.TreatmentCategory)
}

func TestErrorMapping(t *testing.T) {
	s := newSQLiteServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"missing intake fields", http.MethodPost, "/api/v1/requests", map[string]string{"patient_name": "X"}, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"missing request id", http.MethodPost, "/api/v1/decisions", map[string]string{}, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"unknown request id", http.MethodPost, "/api/v1/decisions", map[string]string{"request_id": "nope"}, http.StatusNotFound, domain.ErrCodeNotFound},
		{"unknown request", http.MethodGet, "/api/v1/requests/nope", nil, http.StatusNotFound, domain.ErrCodeNotFound},
		{"invalid status filter", http.MethodGet, "/api/v1/requests?status=lost", nil, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"invalid limit", http.MethodGet, "/api/v1/requests?limit=-1", nil, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"empty treatment", http.MethodPost, "/api/v1/categorize", map[string]string{"treatment": " "}, http.StatusBadRequest, domain.ErrCodeInvalidInput},
		{"empty document", http.MethodPost, "/api/v1/documents/validate", map[string]string{}, http.StatusBadRequest, domain.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeAPIError(t, w).Code)
		})
	}
}

func TestInvalidJSONBody(t *testing.T) {
	s := newSQLiteServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreUnavailable(t *testing.T) {
	s := newTestServer(t, failingStore{}, domain.RateLimitConfig{})

	for _, path := range []string{"/api/v1/requests/req-1", "/api/v1/requests"} {
		w := doJSON(s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, domain.ErrCodeStoreUnavailable, decodeAPIError(t, w).Code)
	}

	w := doJSON(s, http.MethodPost, "/api/v1/decisions", map[string]string{"request_id": "req-1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(s, http.MethodPost, "/api/v1/requests", service.IntakeRequest{
		PatientName: "John", InsuranceType: "Aetna", TreatmentType: "Ozempic",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCategorize(t *testing.T) {
	s := newSQLiteServer(t)

	w := doJSON(s, http.MethodPost, "/api/v1/categorize", map[string]string{"treatment": "IRM du genou"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"treatment":"IRM du genou","category":"mri"}`, w.Body.String())
}

func TestLookupRule(t *testing.T) {
	s := newSQLiteServer(t)

	w := doJSON(s, http.MethodGet, "/api/v1/rules/blue%20cross?category=mri", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Canonical    string               `json:"canonical"`
		KnownInsurer bool                 `json:"known_insurer"`
		Rule         domain.InsuranceRule `json:"rule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BlueCross", body.Canonical)
	assert.True(t, body.KnownInsurer)
	assert.Contains(t, body.Rule.MinimumRequirements, domain.RequirementToken("x_ray_required"))

	w = doJSON(s, http.MethodGet, "/api/v1/rules/Unknown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"known_insurer":false`)
}

func TestValidateDocument(t *testing.T) {
	s := newSQLiteServer(t)

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	w := doJSON(s, http.MethodPost, "/api/v1/documents/validate", map[string]string{
		"document": base64.StdEncoding.EncodeToString(png),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"format":"png","size_bytes":9}`, w.Body.String())

	w = doJSON(s, http.MethodPost, "/api/v1/documents/validate", map[string]string{
		"document": base64.StdEncoding.EncodeToString([]byte("GIF89a....")),
	})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Valid bool                  `json:"valid"`
		Error *domain.DocumentError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Valid)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.DocumentUnsupportedFormat, body.Error.Kind)
	assert.NotEmpty(t, body.Error.Suggestions)
}

func TestRateLimited(t *testing.T) {
	store, err := repository.NewSQLiteRequestStore(":memory:", testLogger())
	require.NoError(t, err)
	defer store.Close()
	s := newTestServer(t, store, domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, doJSON(s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(s, http.MethodGet, "/health", nil).Code)

	w := doJSON(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, domain.ErrCodeRateLimit, decodeAPIError(t, w).Code)
}
