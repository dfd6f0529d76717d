package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the conversation ledger in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initLedgerSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initLedgerSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			session_token TEXT NOT NULL UNIQUE,
			message_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages (conversation_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// GetOrCreate is safe under concurrent first messages for the same
// token: the unique constraint makes one insert win and both callers
// read back the same row.
func (s *PostgresStore) GetOrCreate(ctx context.Context, sessionToken string) (Conversation, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, session_token)
		 VALUES ($1, $2)
		 ON CONFLICT (session_token) DO NOTHING`,
		id, sessionToken,
	)
	if err != nil {
		return Conversation{}, &PersistenceError{Op: "create", Err: err}
	}

	conv, found, err := s.FindByToken(ctx, sessionToken)
	if err != nil {
		return Conversation{}, err
	}
	if !found {
		return Conversation{}, &PersistenceError{Op: "create", Err: errors.New("conversation vanished after insert")}
	}
	return conv, nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, sessionToken string) (Conversation, bool, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_token, message_count, created_at, last_message_at
		 FROM conversations WHERE session_token=$1`,
		sessionToken,
	).Scan(&c.ID, &c.SessionToken, &c.MessageCount, &c.CreatedAt, &c.LastMessageAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, false, nil
	}
	if err != nil {
		return Conversation{}, false, &PersistenceError{Op: "find", Err: err}
	}
	return c, true, nil
}

// AppendTurn writes both halves and bumps the conversation counters in
// one transaction.
func (s *PostgresStore) AppendTurn(ctx context.Context, conversationID, userText, assistantText string) (Message, Message, error) {
	now := time.Now().UTC()
	userMsg := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         SenderUser,
		Content:        userText,
		CreatedAt:      now,
	}
	assistantMsg := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         SenderAssistant,
		Content:        assistantText,
		CreatedAt:      now,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, Message{}, &PersistenceError{Op: "append", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, m := range []Message{userMsg, assistantMsg} {
		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, sender, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.ConversationID, m.Sender, m.Content, m.CreatedAt,
		); err != nil {
			return Message{}, Message{}, &PersistenceError{Op: "append", Err: err}
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE conversations
		 SET message_count = message_count + 2, last_message_at = $2
		 WHERE id = $1`,
		conversationID, now,
	)
	if err != nil {
		return Message{}, Message{}, &PersistenceError{Op: "append", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return Message{}, Message{}, &PersistenceError{Op: "append", Err: fmt.Errorf("unknown conversation %s", conversationID)}
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, Message{}, &PersistenceError{Op: "append", Err: err}
	}
	return userMsg, assistantMsg, nil
}

// History returns the most recent limit messages in chronological order.
func (s *PostgresStore) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender, content, created_at
		 FROM messages WHERE conversation_id=$1 ORDER BY seq DESC LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "history", Err: err}
	}
	defer rows.Close()

	items := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, &PersistenceError{Op: "history", Err: err}
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "history", Err: err}
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
