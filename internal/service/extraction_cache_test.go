package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/cache"
	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

var pdfBytes = []byte("%PDF-1.4\n%%EOF")

func TestCachedExtractor_MemoryHitAfterFirstCall(t *testing.T) {
	inner := new(MockExtractor)
	result := &domain.ExtractionResult{DocumentType: "prescription"}
	inner.On("Extract", mock.Anything, pdfBytes).Return(result, nil).Once()

	c := NewCachedExtractor(inner, cache.NewMemoryCache(10, time.Minute), nil, 0, testLogger())

	first, err := c.Extract(context.Background(), pdfBytes)
	require.NoError(t, err)
	second, err := c.Extract(context.Background(), pdfBytes)
	require.NoError(t, err)

	assert.Same(t, result, first)
	assert.Same(t, result, second)
	inner.AssertExpectations(t)

	stats := c.GetCacheStats()
	assert.EqualValues(t, 2, stats.TotalRequests)
	assert.EqualValues(t, 1, stats.MemoryHits)
	assert.EqualValues(t, 1, stats.MemoryMisses)
	assert.EqualValues(t, 1, stats.ExternalCalls)
	assert.Zero(t, stats.RedisHits+stats.RedisMisses)
}

func TestCachedExtractor_RedisHitPopulatesMemory(t *testing.T) {
	inner := new(MockExtractor)
	redis := new(MockExtractionCache)
	result := &domain.ExtractionResult{DocumentType: "lab_report"}
	redis.On("GetExtraction", mock.Anything, mock.AnythingOfType("string")).Return(result, true, nil).Once()

	memory := cache.NewMemoryCache(10, time.Minute)
	c := NewCachedExtractor(inner, memory, redis, time.Hour, testLogger())

	got, err := c.Extract(context.Background(), pdfBytes)
	require.NoError(t, err)
	assert.Same(t, result, got)
	assert.Equal(t, 1, memory.Len())

	_, err = c.Extract(context.Background(), pdfBytes)
	require.NoError(t, err)

	redis.AssertExpectations(t)
	inner.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	assert.EqualValues(t, 1, c.GetCacheStats().RedisHits)
}

func TestCachedExtractor_MissWritesBothTiers(t *testing.T) {
	inner := new(MockExtractor)
	redis := new(MockExtractionCache)
	result := &domain.ExtractionResult{DocumentType: "prescription"}

	redis.On("GetExtraction", mock.Anything, mock.AnythingOfType("string")).Return(nil, false, errors.New("connection refused"))
	inner.On("Extract", mock.Anything, pdfBytes).Return(result, nil)
	redis.On("SetExtraction", mock.Anything, mock.AnythingOfType("string"), result, time.Hour).Return(errors.New("connection refused"))

	c := NewCachedExtractor(inner, nil, redis, time.Hour, testLogger())

	got, err := c.Extract(context.Background(), pdfBytes)
	require.NoError(t, err)
	assert.Same(t, result, got)
	redis.AssertExpectations(t)

	stats := c.GetCacheStats()
	assert.EqualValues(t, 1, stats.RedisMisses)
	assert.EqualValues(t, 1, stats.ExternalCalls)
}

func TestCachedExtractor_FailuresAreNotCached(t *testing.T) {
	inner := new(MockExtractor)
	failure := domain.NewDocumentError(domain.DocumentTransportFailure, domain.FormatPDF, "down")
	inner.On("Extract", mock.Anything, pdfBytes).Return(nil, failure).Twice()

	c := NewCachedExtractor(inner, nil, nil, 0, testLogger())

	for i := 0; i < 2; i++ {
		_, err := c.Extract(context.Background(), pdfBytes)
		assert.ErrorIs(t, err, domain.ErrExtractionTransport)
	}
	inner.AssertExpectations(t)
	assert.EqualValues(t, 2, c.GetCacheStats().ErrorCount)

	c.ResetStats()
	assert.Zero(t, c.GetCacheStats().TotalRequests)
}
