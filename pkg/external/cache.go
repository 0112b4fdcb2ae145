package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const extractionKeyPrefix = "extraction:"

// CacheClient wraps a Redis client holding extraction results keyed by
// document digest.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client and checks the connection.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	defaultTTL := config.DefaultTTL
	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: defaultTTL,
	}, nil
}

// CachedExtraction represents a cached extraction result with metadata
type CachedExtraction struct {
	Data      *domain.ExtractionResult `json:"data"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// GetExtraction retrieves a cached extraction result
func (c *CacheClient) GetExtraction(ctx context.Context, digest string) (*domain.ExtractionResult, bool, error) {
	key := extractionKeyPrefix + digest

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get extraction cache: %w", err)
	}

	var cached CachedExtraction
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Data == nil {
		// corrupt entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetExtraction caches an extraction result
func (c *CacheClient) SetExtraction(ctx context.Context, digest string, result *domain.ExtractionResult, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	cached := CachedExtraction{
		Data:      result,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction cache data: %w", err)
	}

	return c.redis.Set(ctx, extractionKeyPrefix+digest, jsonData, ttl).Err()
}

// InvalidateExtraction removes one cached extraction.
func (c *CacheClient) InvalidateExtraction(ctx context.Context, digest string) error {
	return c.redis.Del(ctx, extractionKeyPrefix+digest).Err()
}

// GetStats returns cache statistics
func (c *CacheClient) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.redis.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	return map[string]interface{}{
		"memory_info": info,
		"pool_stats":  c.redis.PoolStats(),
	}, nil
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}
