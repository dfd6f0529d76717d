package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront-labs/concierge/internal/knowledge"
)

const cacheKeyPrefix = "retrieval:"

// RedisCache stores search results in Redis with a TTL. All backend
// failures are reported as *CacheError so the caller can fail open.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// cachedResult is the wire form: embeddings are not cached, only the
// ranked ids and display fields needed to rebuild the result.
type cachedResult struct {
	Entries []knowledge.Entry `json:"entries"`
	Scores  []float64         `json:"scores"`
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) ([]knowledge.ScoredEntry, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+fingerprint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, &CacheError{Op: "get", Err: err}
	}

	var payload cachedResult
	if err := json.Unmarshal([]byte(data), &payload); err != nil || len(payload.Entries) != len(payload.Scores) {
		// Corrupt entry: clear it and recompute rather than serving garbage.
		_ = c.client.Del(ctx, cacheKeyPrefix+fingerprint).Err()
		return nil, false, nil
	}

	results := make([]knowledge.ScoredEntry, 0, len(payload.Entries))
	for i, e := range payload.Entries {
		results = append(results, knowledge.ScoredEntry{Entry: e, Score: payload.Scores[i]})
	}
	return results, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, results []knowledge.ScoredEntry, ttl time.Duration) error {
	payload := cachedResult{
		Entries: make([]knowledge.Entry, 0, len(results)),
		Scores:  make([]float64, 0, len(results)),
	}
	for _, r := range results {
		payload.Entries = append(payload.Entries, r.Entry)
		payload.Scores = append(payload.Scores, r.Score)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return &CacheError{Op: "put", Err: err}
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+fingerprint, data, ttl).Err(); err != nil {
		return &CacheError{Op: "put", Err: err}
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, fingerprint string) error {
	if err := c.client.Del(ctx, cacheKeyPrefix+fingerprint).Err(); err != nil {
		return &CacheError{Op: "invalidate", Err: err}
	}
	return nil
}

func (c *RedisCache) Close() error { return c.client.Close() }
