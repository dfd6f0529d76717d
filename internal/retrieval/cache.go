package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/storefront-labs/concierge/internal/knowledge"
)

// Cache memoizes search results keyed by a query fingerprint. It is an
// exact-match layer on top of semantic search, not a semantic cache:
// differently worded queries are distinct keys on purpose.
type Cache interface {
	// Get returns the cached result and whether it was present.
	Get(ctx context.Context, fingerprint string) ([]knowledge.ScoredEntry, bool, error)
	Put(ctx context.Context, fingerprint string, results []knowledge.ScoredEntry, ttl time.Duration) error
	Invalidate(ctx context.Context, fingerprint string) error
}

// CacheError marks a cache-backend failure. Callers swallow exactly this
// kind (miss on read, no-op on write) so real bugs are not masked along
// with backend outages.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }

func (e *CacheError) Unwrap() error { return e.Err }

// Fingerprint derives a stable cache key from case-normalized,
// whitespace-collapsed query text plus the top-k and the knowledge-set
// generation. Folding in the generation means a re-seed misses every old
// key, so stale results from a superseded set are never served; the
// top-k component keeps a future top-k change from serving results of
// the wrong shape.
func Fingerprint(query string, topK int, generation uint64) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", normalized, topK, generation)))
	return hex.EncodeToString(sum[:])
}
