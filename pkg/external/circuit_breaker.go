package external

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

func newBreaker(name string, cfg CircuitBreakerConfig, isSuccessful func(error) bool, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: isSuccessful,
	})
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// ResilientGenerator wraps a generator with a circuit breaker and an
// outbound rate limiter.
type ResilientGenerator struct {
	next    domain.Generator
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewResilientGenerator wraps gen. rateLimit is in requests per second; zero
// disables limiting.
func NewResilientGenerator(gen domain.Generator, cfg CircuitBreakerConfig, rateLimit int, logger *logrus.Logger) *ResilientGenerator {
	// Rejected prompts, bad credentials and unusable answers say nothing
	// about the health of the endpoint.
	isSuccessful := func(err error) bool {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			switch genErr.Kind {
			case domain.GenerationValidation, domain.GenerationAccessDenied, domain.GenerationMalformedResponse:
				return true
			}
			return false
		}
		return err == nil
	}
	return &ResilientGenerator{
		next:    gen,
		breaker: newBreaker("generator:"+gen.Name(), cfg, isSuccessful, logger),
		limiter: newLimiter(rateLimit),
	}
}

// Name returns the wrapped generator's name
func (g *ResilientGenerator) Name() string {
	return g.next.Name()
}

// Generate calls the wrapped generator unless the breaker is open.
func (g *ResilientGenerator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", domain.NewGenerationError(domain.GenerationOther, "rate limit wait cancelled", err)
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, prompt, params)
	})
	if err != nil {
		if breakerRejected(err) {
			return "", domain.NewGenerationError(domain.GenerationModelUnavailable, "circuit breaker open", err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state.
func (g *ResilientGenerator) State() gobreaker.State {
	return g.breaker.State()
}

// ResilientExtractor wraps a document extractor with a circuit breaker and
// an outbound rate limiter.
type ResilientExtractor struct {
	next    domain.DocumentExtractor
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewResilientExtractor wraps ext. Only transport failures count against the
// breaker.
func NewResilientExtractor(ext domain.DocumentExtractor, cfg CircuitBreakerConfig, rateLimit int, logger *logrus.Logger) *ResilientExtractor {
	isSuccessful := func(err error) bool {
		var docErr *domain.DocumentError
		if errors.As(err, &docErr) {
			return docErr.Kind != domain.DocumentTransportFailure
		}
		return err == nil
	}
	return &ResilientExtractor{
		next:    ext,
		breaker: newBreaker("extractor", cfg, isSuccessful, logger),
		limiter: newLimiter(rateLimit),
	}
}

// Extract calls the wrapped extractor unless the breaker is open.
func (e *ResilientExtractor) Extract(ctx context.Context, data []byte) (*domain.ExtractionResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, transportError(domain.FormatUnknown, "rate limit wait cancelled", err)
	}

	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.next.Extract(ctx, data)
	})
	if err != nil {
		if breakerRejected(err) {
			return nil, transportError(domain.FormatUnknown, "extraction service circuit breaker open", err)
		}
		return nil, err
	}
	return out.(*domain.ExtractionResult), nil
}

// State reports the breaker state.
func (e *ResilientExtractor) State() gobreaker.State {
	return e.breaker.State()
}
