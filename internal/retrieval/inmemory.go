package retrieval

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/storefront-labs/concierge/internal/knowledge"
)

// InMemoryCache is a process-local TTL cache for local/dev use.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
	now     func() time.Time
}

type inMemoryEntry struct {
	results   []knowledge.ScoredEntry
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]inMemoryEntry),
		now:     time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, fingerprint string) ([]knowledge.ScoredEntry, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, fingerprint)
		c.mu.Unlock()
		return nil, false, nil
	}

	out := make([]knowledge.ScoredEntry, len(entry.results))
	copy(out, entry.results)
	return out, true, nil
}

func (c *InMemoryCache) Put(_ context.Context, fingerprint string, results []knowledge.ScoredEntry, ttl time.Duration) error {
	stored := make([]knowledge.ScoredEntry, len(results))
	copy(stored, results)

	c.mu.Lock()
	c.entries[fingerprint] = inMemoryEntry{results: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	delete(c.entries, fingerprint)
	c.mu.Unlock()
	return nil
}

// NoopCache disables caching entirely; every read is a miss.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(context.Context, string) ([]knowledge.ScoredEntry, bool, error) {
	return nil, false, nil
}

func (NoopCache) Put(context.Context, string, []knowledge.ScoredEntry, time.Duration) error {
	return nil
}

func (NoopCache) Invalidate(context.Context, string) error { return nil }

// NewCache selects the cache backend: redis when configured, otherwise a
// process-local cache; disabled means no-op.
func NewCache(ctx context.Context, redisURL string, disabled bool) (Cache, error) {
	if disabled {
		return NewNoopCache(), nil
	}
	if strings.TrimSpace(redisURL) == "" {
		return NewInMemoryCache(), nil
	}
	return NewRedisCache(ctx, redisURL)
}
