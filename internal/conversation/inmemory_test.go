package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := s.GetOrCreate(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same token produced two conversations: %s vs %s", first.ID, second.ID)
	}

	other, err := s.GetOrCreate(ctx, "token-2")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("distinct tokens must map to distinct conversations")
	}
}

func TestGetOrCreateConcurrentSameToken(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.GetOrCreate(ctx, "shared")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent creates split the conversation: %s vs %s", ids[i], ids[0])
		}
	}
}

func TestAppendTurnWritesPairAtomically(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	c, err := s.GetOrCreate(ctx, "token")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	userMsg, assistantMsg, err := s.AppendTurn(ctx, c.ID, "question", "answer")
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if userMsg.Sender != SenderUser || assistantMsg.Sender != SenderAssistant {
		t.Fatalf("senders = %q, %q", userMsg.Sender, assistantMsg.Sender)
	}

	updated, _, err := s.FindByToken(ctx, "token")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if updated.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", updated.MessageCount)
	}

	history, err := s.History(ctx, c.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Content != "question" || history[1].Content != "answer" {
		t.Fatalf("history out of order: %q, %q", history[0].Content, history[1].Content)
	}
}

func TestAppendTurnUnknownConversation(t *testing.T) {
	s := NewInMemoryStore()

	_, _, err := s.AppendTurn(context.Background(), "missing", "q", "a")
	if err == nil {
		t.Fatal("expected error for unknown conversation")
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error type %T, want *PersistenceError", err)
	}
}

func TestHistoryWindowIsMostRecentChronological(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	c, _ := s.GetOrCreate(ctx, "token")
	for i := 0; i < 5; i++ {
		if _, _, err := s.AppendTurn(ctx, c.ID, "q", "a"); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	history, err := s.History(ctx, c.ID, 4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	// The window must end on the latest assistant half and alternate.
	want := []Sender{SenderUser, SenderAssistant, SenderUser, SenderAssistant}
	for i, m := range history {
		if m.Sender != want[i] {
			t.Fatalf("history[%d].Sender = %q, want %q", i, m.Sender, want[i])
		}
	}
}

func TestFindByTokenMissing(t *testing.T) {
	s := NewInMemoryStore()
	_, found, err := s.FindByToken(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if found {
		t.Fatal("missing token reported as found")
	}
}

func TestNewStoreDefaultsToInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("store type %T, want *InMemoryStore", store)
	}
}
