package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists the seeded knowledge set so the in-memory
// store can be rebuilt at startup. Search never touches the database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, pool *pgxpool.Pool) (*PostgresRepository, error) {
	if err := initKnowledgeSchema(ctx, pool); err != nil {
		return nil, err
	}
	return &PostgresRepository{pool: pool}, nil
}

func initKnowledgeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			embedding REAL[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init knowledge schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// ReplaceAll swaps the persisted set inside one transaction: old entries are
// fully superseded, never merged.
func (r *PostgresRepository) ReplaceAll(ctx context.Context, entries []Entry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("clear knowledge entries: %w", err)
	}

	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_entries (id, category, question, answer, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.Category, e.Question, e.Answer, e.Embedding, createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert knowledge entry %q: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

// LoadAll returns the persisted set ordered by id.
func (r *PostgresRepository) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, category, question, answer, embedding, created_at
		 FROM knowledge_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Category, &e.Question, &e.Answer, &e.Embedding, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge entries: %w", err)
	}
	return entries, nil
}
