package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process ledger for local/dev use. It
// honors the same atomicity contract as the Postgres store: a turn is
// either fully appended or not at all.
type InMemoryStore struct {
	mu       sync.RWMutex
	byToken  map[string]*Conversation
	byID     map[string]*Conversation
	messages map[string][]Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byToken:  make(map[string]*Conversation),
		byID:     make(map[string]*Conversation),
		messages: make(map[string][]Message),
	}
}

func (s *InMemoryStore) GetOrCreate(_ context.Context, sessionToken string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byToken[sessionToken]; ok {
		return *c, nil
	}

	now := time.Now().UTC()
	c := &Conversation{
		ID:            uuid.NewString(),
		SessionToken:  sessionToken,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	s.byToken[sessionToken] = c
	s.byID[c.ID] = c
	return *c, nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, sessionToken string) (Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byToken[sessionToken]
	if !ok {
		return Conversation{}, false, nil
	}
	return *c, true, nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, conversationID, userText, assistantText string) (Message, Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return Message{}, Message{}, &PersistenceError{Op: "append", Err: fmt.Errorf("unknown conversation %s", conversationID)}
	}

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

	s.messages[conversationID] = append(s.messages[conversationID], userMsg, assistantMsg)
	c.MessageCount += 2
	c.LastMessageAt = now
	return userMsg, assistantMsg, nil
}

func (s *InMemoryStore) History(_ context.Context, conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arr := s.messages[conversationID]
	if len(arr) == 0 {
		return []Message{}, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Message, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
