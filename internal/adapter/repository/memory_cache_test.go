package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	value := &entity.ResearchResult{Notes: []string{"cached"}}
	cache.Set(ctx, "key", value, time.Minute)

	got, ok := cache.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, []string{"cached"}, got.Notes)
}

func TestMemoryCacheExpiresLazily(t *testing.T) {
	now := time.Now()
	cache := &memoryCache{
		entries: make(map[string]cacheEntry),
		now:     func() time.Time { return now },
	}
	ctx := context.Background()

	cache.Set(ctx, "key", &entity.ResearchResult{}, 10*time.Second)

	_, ok := cache.Get(ctx, "key")
	assert.True(t, ok, "entry must live within its ttl")

	now = now.Add(10 * time.Second)
	_, ok = cache.Get(ctx, "key")
	assert.False(t, ok, "entry must expire at the ttl boundary")

	// The expired entry is removed on read.
	cache.mu.RLock()
	_, present := cache.entries["key"]
	cache.mu.RUnlock()
	assert.False(t, present)
}

func TestMemoryCacheIgnoresUnstorableValues(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.Set(ctx, "nil", nil, time.Minute)
	_, ok := cache.Get(ctx, "nil")
	assert.False(t, ok)

	cache.Set(ctx, "zero-ttl", &entity.ResearchResult{}, 0)
	_, ok = cache.Get(ctx, "zero-ttl")
	assert.False(t, ok)
}
