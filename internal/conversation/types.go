package conversation

import (
	"context"
	"time"
)

// Sender identifies the author of a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Conversation is one session-scoped thread. SessionToken is the opaque
// client-held handle; ID is the internal key messages hang off.
type Conversation struct {
	ID            string    `json:"id"`
	SessionToken  string    `json:"session_token"`
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Message is one persisted turn half.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// PersistenceError wraps ledger failures so callers can tell a storage
// outage apart from upstream provider problems.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "conversation " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store is the conversation ledger. AppendTurn writes the user and
// assistant halves of a turn atomically; a failure leaves neither
// visible.
type Store interface {
	GetOrCreate(ctx context.Context, sessionToken string) (Conversation, error)
	FindByToken(ctx context.Context, sessionToken string) (Conversation, bool, error)
	AppendTurn(ctx context.Context, conversationID, userText, assistantText string) (Message, Message, error)
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Close() error
}
