package domain

import (
	"context"
)

// RequestStore persists prior-authorization requests and their decisions.
// Get returns an error wrapping ErrNotFound for unknown ids.
type RequestStore interface {
	Get(ctx context.Context, id string) (*Request, error)
	Create(ctx context.Context, req *Request) error
	UpdateDecision(ctx context.Context, id string, update DecisionUpdate) error
	ListByStatus(ctx context.Context, status RequestStatus, limit int) ([]*Request, error)
	ListRecent(ctx context.Context, limit int) ([]*Request, error)
}

// GenerationParams are the fixed sampling parameters sent with every prompt.
type GenerationParams struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
}

// Generator calls an external generative text service. Failures are returned
// as *GenerationError.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Name() string
}

// DocumentExtractor calls the external document extraction service. Failures
// are returned as *DocumentError.
type DocumentExtractor interface {
	Extract(ctx context.Context, document []byte) (*ExtractionResult, error)
}

// RuleRepository resolves the insurance rule for an insurer and category.
// Lookup never fails.
type RuleRepository interface {
	Lookup(insurer, category string) InsuranceRule
	CanonicalInsurer(insurer string) (string, bool)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetGeneratorConfig() *GeneratorConfig
	Validate() error
	Reload() error
}
