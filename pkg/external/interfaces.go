// Package external holds the clients for the services the prior-authorization
// pipeline depends on: the generative decision model, the document extraction
// service and the Redis cache in front of it.
package external

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// ExtractionCache stores extraction results keyed by document digest.
type ExtractionCache interface {
	GetExtraction(ctx context.Context, digest string) (*domain.ExtractionResult, bool, error)
	SetExtraction(ctx context.Context, digest string, result *domain.ExtractionResult, ttl time.Duration) error
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `json:"max_requests"`
	Interval         time.Duration `json:"interval"`
	Timeout          time.Duration `json:"timeout"`
	FailureThreshold uint32        `json:"failure_threshold"`
}

// DefaultCircuitBreakerConfig returns the breaker settings used for the
// generator and extractor.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 5,
	}
}

// generationErrorKind maps an HTTP status from a model endpoint onto the
// generation error taxonomy.
func generationErrorKind(status int) domain.GenerationErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.GenerationValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.GenerationAccessDenied
	case http.StatusNotFound, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return domain.GenerationModelUnavailable
	default:
		return domain.GenerationOther
	}
}

// NewGenerator builds the generator selected by cfg.Provider and wraps it in
// a circuit breaker and outbound rate limiter.
func NewGenerator(cfg domain.GeneratorConfig, logger *logrus.Logger) (domain.Generator, error) {
	var gen domain.Generator
	switch cfg.Provider {
	case "openai":
		g, err := NewOpenAIGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	case "titan":
		g, err := NewTitanGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	case "static", "":
		return NewStaticGenerator(cfg.StaticResponse), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
	return NewResilientGenerator(gen, DefaultCircuitBreakerConfig(), cfg.RateLimit, logger), nil
}

// NewExtractor builds the document extractor selected by cfg.Provider. It
// returns nil for provider "none".
func NewExtractor(cfg domain.ExtractionConfig, logger *logrus.Logger) (domain.DocumentExtractor, error) {
	switch cfg.Provider {
	case "http":
		ext, err := NewHTTPExtractor(cfg)
		if err != nil {
			return nil, err
		}
		return NewResilientExtractor(ext, DefaultCircuitBreakerConfig(), cfg.RateLimit, logger), nil
	case "static", "":
		return NewStaticExtractor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}
