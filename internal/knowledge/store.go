package knowledge

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// DefaultTopK is used when a caller passes a non-positive top-k.
const DefaultTopK = 3

// Store holds the active knowledge set in memory and ranks entries by
// brute-force cosine similarity. The set is small (tens to low thousands),
// so a full scan is fine; the Search contract does not expose the scan, so
// an ANN index could replace it later.
//
// Store is safe for concurrent use. ReplaceAll swaps the whole slice under
// the write lock, so concurrent searches see either the fully-old or the
// fully-new set, never a mix.
type Store struct {
	mu         sync.RWMutex
	entries    []Entry
	generation uint64
	dim        int
}

// NewStore creates an empty store whose entries must all have the given
// embedding dimension.
func NewStore(dim int) *Store {
	return &Store{dim: dim}
}

// ReplaceAll atomically replaces the active entry set. A dimension mismatch
// is a configuration error: the active set is left untouched.
func (s *Store) ReplaceAll(entries []Entry) error {
	for _, e := range entries {
		if len(e.Embedding) != s.dim {
			return fmt.Errorf("entry %q embedding dimension %d does not match store dimension %d",
				e.ID, len(e.Embedding), s.dim)
		}
	}

	next := make([]Entry, len(entries))
	copy(next, entries)

	s.mu.Lock()
	s.entries = next
	s.generation++
	s.mu.Unlock()
	return nil
}

// Generation counts successful ReplaceAll calls. Cached search results are
// keyed by it, so superseded sets stop being served the moment a re-seed
// lands instead of lingering until their TTL.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Search returns up to topK entries ordered by descending cosine similarity,
// ties broken by ascending entry id. An empty store returns an empty slice.
func (s *Store) Search(queryVec []float32, topK int) []ScoredEntry {
	if topK <= 0 {
		topK = DefaultTopK
	}

	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	if len(entries) == 0 {
		return []ScoredEntry{}
	}

	scored := make([]ScoredEntry, 0, len(entries))
	for _, e := range entries {
		scored = append(scored, ScoredEntry{Entry: e, Score: cosineSimilarity(queryVec, e.Embedding)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.ID < scored[j].Entry.ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Count returns the size of the active set.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimension returns the fixed embedding dimension of the store.
func (s *Store) Dimension() int { return s.dim }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
