package knowledge

import "time"

// Entry is a single knowledge-base item with its precomputed embedding.
// Entries are immutable once seeded; ReplaceAll swaps the whole set.
type Entry struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredEntry pairs an entry with its cosine similarity to a query.
type ScoredEntry struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// SeedEntry is the external seeding payload before embedding.
type SeedEntry struct {
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
