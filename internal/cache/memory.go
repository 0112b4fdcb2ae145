// Package cache provides the in-memory tier of the extraction result cache.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const (
	DefaultMemorySize = 1000
	DefaultMemoryTTL  = 15 * time.Minute
)

// MemoryCache is a size-bounded LRU of extraction results whose entries
// expire after a fixed TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.ExtractionResult]
}

// NewMemoryCache creates a memory cache. Zero values select the defaults.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.ExtractionResult](size, nil, ttl),
	}
}

// Get returns the cached result for digest.
func (c *MemoryCache) Get(digest string) (*domain.ExtractionResult, bool) {
	return c.lru.Get(digest)
}

// Add stores result under digest, evicting the least recently used entry
// when full.
func (c *MemoryCache) Add(digest string, result *domain.ExtractionResult) {
	c.lru.Add(digest, result)
}

// Remove drops digest from the cache.
func (c *MemoryCache) Remove(digest string) {
	c.lru.Remove(digest)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}
