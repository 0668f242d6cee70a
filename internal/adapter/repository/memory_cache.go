package repository

import (
	"context"
	"sync"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	domainRepo "github.com/wekeepgrowing/research-agent/internal/domain/repository"
)

type cacheEntry struct {
	value     *entity.ResearchResult
	expiresAt time.Time
}

// memoryCache is a TTL cache over research-pass outputs. Entries expire
// lazily on read; there is no background sweep.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache returns the in-process cache backend.
func NewMemoryCache() domainRepo.CacheRepository {
	return &memoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (*entity.ResearchResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if current, ok := c.entries[key]; ok && !c.now().Before(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value *entity.ResearchResult, ttl time.Duration) {
	if value == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}
