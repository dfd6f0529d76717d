package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/storefront-labs/concierge/internal/embedding"
	"github.com/storefront-labs/concierge/internal/knowledge"
)

// Retriever runs one semantic lookup: fingerprint, cache probe, embed,
// brute-force search, cache fill. Cache failures degrade to a plain search;
// they never fail the turn.
type Retriever struct {
	embedder embedding.Embedder
	store    *knowledge.Store
	cache    Cache
	ttl      time.Duration
	topK     int
}

// Result is the outcome of one retrieval. CacheHit is observability-only:
// hit or miss, Entries are identical for the same query and knowledge set.
type Result struct {
	Entries  []knowledge.ScoredEntry
	CacheHit bool
}

func NewRetriever(embedder embedding.Embedder, store *knowledge.Store, cache Cache, ttl time.Duration, topK int) *Retriever {
	if cache == nil {
		cache = NewNoopCache()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, cache: cache, ttl: ttl, topK: topK}
}

// Retrieve returns the top-k knowledge entries for the query. The only
// returned errors are embedding failures and context cancellation.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Result, error) {
	fingerprint := Fingerprint(query, r.topK, r.store.Generation())

	cached, ok, err := r.cache.Get(ctx, fingerprint)
	if err != nil {
		var cacheErr *CacheError
		if !errors.As(err, &cacheErr) {
			return Result{}, err
		}
		log.Printf("retrieval cache read failed, continuing without cache: %v", cacheErr)
	}
	if ok {
		return Result{Entries: cached, CacheHit: true}, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	results := r.store.Search(queryVec, r.topK)

	if err := r.cache.Put(ctx, fingerprint, results, r.ttl); err != nil {
		var cacheErr *CacheError
		if !errors.As(err, &cacheErr) {
			return Result{}, err
		}
		log.Printf("retrieval cache write failed, continuing without cache: %v", cacheErr)
	}

	return Result{Entries: results, CacheHit: false}, nil
}

// TopK reports the configured result count.
func (r *Retriever) TopK() int { return r.topK }
