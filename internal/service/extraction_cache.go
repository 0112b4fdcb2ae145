package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/cache"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
	"github.com/Cr4zy5h4rk/smart-prior-auth/pkg/external"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	ExternalCalls int64     `json:"external_calls"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// CachedExtractor puts a two-tier cache in front of a document extractor.
// Tier 1 is the in-memory LRU, tier 2 is Redis. Results are keyed by the
// SHA-256 digest of the document bytes; failures are never cached.
type CachedExtractor struct {
	next     domain.DocumentExtractor
	memory   *cache.MemoryCache
	redis    external.ExtractionCache
	redisTTL time.Duration

	logger  *logrus.Logger
	stats   CacheStats
	statsMu sync.RWMutex
}

// NewCachedExtractor creates a cached extractor. redis may be nil, in which
// case only the memory tier is used.
func NewCachedExtractor(
	next domain.DocumentExtractor,
	memory *cache.MemoryCache,
	redis external.ExtractionCache,
	redisTTL time.Duration,
	logger *logrus.Logger,
) *CachedExtractor {
	if memory == nil {
		memory = cache.NewMemoryCache(0, 0)
	}
	if redisTTL == 0 {
		redisTTL = 24 * time.Hour
	}
	return &CachedExtractor{
		next:     next,
		memory:   memory,
		redis:    redis,
		redisTTL: redisTTL,
		logger:   logger,
		stats:    CacheStats{LastReset: time.Now()},
	}
}

// Extract returns the cached extraction for data or calls the extractor.
func (c *CachedExtractor) Extract(ctx context.Context, data []byte) (*domain.ExtractionResult, error) {
	c.incrementStat(func(s *CacheStats) { s.TotalRequests++ })

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	logger := c.logger.WithField("digest", digest[:12])

	if result, ok := c.memory.Get(digest); ok {
		c.incrementStat(func(s *CacheStats) { s.MemoryHits++ })
		logger.WithField("cache_tier", "memory").Debug("Extraction cache hit")
		return result, nil
	}
	c.incrementStat(func(s *CacheStats) { s.MemoryMisses++ })

	if c.redis != nil {
		result, found, err := c.redis.GetExtraction(ctx, digest)
		if err != nil {
			logger.WithError(err).Warn("Redis extraction cache unavailable")
		}
		if found {
			c.incrementStat(func(s *CacheStats) { s.RedisHits++ })
			logger.WithField("cache_tier", "redis").Debug("Extraction cache hit")
			c.memory.Add(digest, result)
			return result, nil
		}
		c.incrementStat(func(s *CacheStats) { s.RedisMisses++ })
	}

	c.incrementStat(func(s *CacheStats) { s.ExternalCalls++ })
	result, err := c.next.Extract(ctx, data)
	if err != nil {
		c.incrementStat(func(s *CacheStats) { s.ErrorCount++ })
		return nil, err
	}

	c.memory.Add(digest, result)
	if c.redis != nil {
		if err := c.redis.SetExtraction(ctx, digest, result, c.redisTTL); err != nil {
			logger.WithError(err).Warn("Failed to write extraction to Redis")
		}
	}

	logger.WithField("document_type", result.DocumentType).Info("Extracted document")
	return result, nil
}

// GetCacheStats returns cache performance statistics
func (c *CachedExtractor) GetCacheStats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// ResetStats zeroes the counters.
func (c *CachedExtractor) ResetStats() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats = CacheStats{LastReset: time.Now()}
}

func (c *CachedExtractor) incrementStat(update func(*CacheStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	update(&c.stats)
}
