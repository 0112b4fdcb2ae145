package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

func setupRedis(t *testing.T) *CacheClient {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client, err := NewCacheClient(domain.CacheConfig{
		RedisURL:    "redis://" + endpoint + "/0",
		DefaultTTL:  time.Hour,
		PoolSize:    5,
		PoolTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheClient_Extraction(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	_, found, err := client.GetExtraction(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found)

	result := &domain.ExtractionResult{
		DocumentType: "lab_report",
		Fields:       map[string]domain.ExtractedField{"hba1c": {Text: "8.4%", Confidence: 0.9}},
		Confidence:   0.88,
	}
	require.NoError(t, client.SetExtraction(ctx, "abc123", result, 0))

	got, found, err := client.GetExtraction(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, result, got)

	require.NoError(t, client.InvalidateExtraction(ctx, "abc123"))
	_, found, err = client.GetExtraction(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheClient_CorruptEntryIsDropped(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, client.redis.Set(ctx, extractionKeyPrefix+"bad", "{not json", time.Minute).Err())

	_, found, err := client.GetExtraction(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := client.redis.Exists(ctx, extractionKeyPrefix+"bad").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestNewCacheClient_InvalidURL(t *testing.T) {
	_, err := NewCacheClient(domain.CacheConfig{RedisURL: "not-a-url"})
	assert.Error(t, err)
}
