package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// ClientLimiter hands out one token bucket per client key. Buckets of
// clients that stay quiet for the idle expiry are evicted.
type ClientLimiter struct {
	mu      sync.Mutex
	buckets *gocache.Cache
	limit   rate.Limit
	burst   int
	idle    time.Duration
}

// NewClientLimiter creates a limiter allowing perSecond requests with the
// given burst for every client.
func NewClientLimiter(perSecond float64, burst int, idle time.Duration) *ClientLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &ClientLimiter{
		buckets: gocache.New(idle, 2*idle),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
	}
}

// Allow reports whether the client may proceed now.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if cached, found := l.buckets.Get(key); found {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	// refresh the idle expiry on every hit
	l.buckets.Set(key, limiter, l.idle)
	return limiter.Allow()
}

// Clients returns the number of tracked clients.
func (l *ClientLimiter) Clients() int {
	return l.buckets.ItemCount()
}

// RateLimit answers 429 once a client exceeds its bucket. Clients are keyed
// by IP address.
func RateLimit(cfg domain.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewClientLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.IdleExpiry)

	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
			domain.ErrCodeRateLimit,
			"Rate limit exceeded",
			"",
			c.GetString(CorrelationIDKey),
		))
	}
}
