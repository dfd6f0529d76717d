package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/storefront-labs/concierge/internal/embedding"
)

// Repository persists the seeded set across restarts. Nil-able: without a
// database the store is rebuilt by re-seeding.
type Repository interface {
	ReplaceAll(ctx context.Context, entries []Entry) error
	LoadAll(ctx context.Context) ([]Entry, error)
}

// Seeder embeds raw seed entries and replaces the active set, persisting it
// when a repository is configured. Seeding the same set twice produces an
// identical active set: entry ids are derived from content, not generated.
type Seeder struct {
	embedder embedding.Embedder
	store    *Store
	repo     Repository
}

func NewSeeder(embedder embedding.Embedder, store *Store, repo Repository) *Seeder {
	return &Seeder{embedder: embedder, store: store, repo: repo}
}

// Seed fully replaces the knowledge base. On any failure the previous
// active set stays in place.
func (s *Seeder) Seed(ctx context.Context, seeds []SeedEntry) (int, error) {
	entries := make([]Entry, 0, len(seeds))
	seen := make(map[string]int, len(seeds))
	now := time.Now().UTC()

	for i, seed := range seeds {
		question := strings.TrimSpace(seed.Question)
		answer := strings.TrimSpace(seed.Answer)
		if question == "" || answer == "" {
			return 0, fmt.Errorf("seed entry %d: question and answer are required", i)
		}

		// Ids derive from category+question. Duplicates are rejected here
		// so the in-memory store and the database agree on the outcome.
		id := entryID(seed.Category, question)
		if prev, dup := seen[id]; dup {
			return 0, fmt.Errorf("seed entry %d duplicates entry %d (same category and question)", i, prev)
		}
		seen[id] = i

		vec, err := s.embedder.Embed(ctx, question)
		if err != nil {
			return 0, fmt.Errorf("embed seed entry %d: %w", i, err)
		}
		if len(vec) != s.store.Dimension() {
			return 0, fmt.Errorf("seed entry %d: embedding dimension %d does not match configured dimension %d",
				i, len(vec), s.store.Dimension())
		}

		entries = append(entries, Entry{
			ID:        id,
			Category:  strings.TrimSpace(seed.Category),
			Question:  question,
			Answer:    answer,
			Embedding: vec,
			CreatedAt: now,
		})
	}

	if s.repo != nil {
		if err := s.repo.ReplaceAll(ctx, entries); err != nil {
			return 0, fmt.Errorf("persist knowledge set: %w", err)
		}
	}
	if err := s.store.ReplaceAll(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// SeedFromFile loads a JSON array of seed entries and seeds from it.
func (s *Seeder) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seeds []SeedEntry
	if err := json.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	return s.Seed(ctx, seeds)
}

// LoadPersisted rebuilds the active set from the repository. A missing or
// empty persisted set leaves the store empty, which is not an error.
func (s *Seeder) LoadPersisted(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	entries, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := s.store.ReplaceAll(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func entryID(category, question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(category)) + "\x00" + strings.ToLower(question)))
	return hex.EncodeToString(sum[:16])
}
