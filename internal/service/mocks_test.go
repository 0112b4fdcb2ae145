package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/audit"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// MockGenerator is a mock implementation of domain.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	args := m.Called(ctx, prompt, params)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Name() string {
	return "mock"
}

// MockRequestStore is a mock implementation of domain.RequestStore
type MockRequestStore struct {
	mock.Mock
}

func (m *MockRequestStore) Get(ctx context.Context, id string) (*domain.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}

func (m *MockRequestStore) Create(ctx context.Context, req *domain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestStore) UpdateDecision(ctx context.Context, id string, update domain.DecisionUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockRequestStore) ListByStatus(ctx context.Context, status domain.RequestStatus, limit int) ([]*domain.Request, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Request), args.Error(1)
}

func (m *MockRequestStore) ListRecent(ctx context.Context, limit int) ([]*domain.Request, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Request), args.Error(1)
}

// MockExtractor is a mock implementation of domain.DocumentExtractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}

// MockAuditRecorder is a mock implementation of AuditRecorder
type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockExtractionCache is a mock implementation of external.ExtractionCache
type MockExtractionCache struct {
	mock.Mock
}

func (m *MockExtractionCache) GetExtraction(ctx context.Context, digest string) (*domain.ExtractionResult, bool, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Bool(1), args.Error(2)
}

func (m *MockExtractionCache) SetExtraction(ctx context.Context, digest string, result *domain.ExtractionResult, ttl time.Duration) error {
	args := m.Called(ctx, digest, result, ttl)
	return args.Error(0)
}
