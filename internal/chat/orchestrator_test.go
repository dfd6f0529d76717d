package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/storefront-labs/concierge/internal/conversation"
	"github.com/storefront-labs/concierge/internal/gate"
	"github.com/storefront-labs/concierge/internal/knowledge"
	"github.com/storefront-labs/concierge/internal/observability"
	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/retrieval"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = observability.NewMetrics("chat_test")

type stubRetriever struct {
	calls   int
	entries []knowledge.ScoredEntry
	hit     bool
	err     error
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string) (retrieval.Result, error) {
	r.calls++
	if r.err != nil {
		return retrieval.Result{}, r.err
	}
	return retrieval.Result{Entries: r.entries, CacheHit: r.hit}, nil
}

type stubGenerator struct {
	calls int
	last  prompt.Request
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, req prompt.Request) (string, error) {
	g.calls++
	g.last = req
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestOrchestrator(r Retriever, g Generator) (*Orchestrator, conversation.Store) {
	store := conversation.NewInMemoryStore()
	o := NewOrchestrator(
		gate.New(),
		r,
		prompt.NewAssembler("Help with store questions.", 10),
		g,
		store,
		testMetrics,
		2000,
		10,
	)
	return o, store
}

func TestGreetingFirstTurnShortCircuits(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{reply: "should not be used"}
	o, store := newTestOrchestrator(retriever, generator)

	res, err := o.HandleMessage(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if res.Reply != GreetingReply {
		t.Fatalf("reply = %q, want canned greeting", res.Reply)
	}
	if res.SessionToken == "" {
		t.Fatal("session token was not minted")
	}
	if retriever.calls != 0 {
		t.Fatalf("retriever called %d times on a greeting", retriever.calls)
	}
	if generator.calls != 0 {
		t.Fatalf("generator called %d times on a greeting", generator.calls)
	}

	// The canned turn still lands in the ledger.
	history, err := store.History(context.Background(), res.ConversationID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(history))
	}
	if history[1].Content != GreetingReply {
		t.Fatalf("assistant half = %q", history[1].Content)
	}
}

func TestGreetingMidConversationGenerates(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{reply: "Hello again! Anything else about your order?"}
	o, _ := newTestOrchestrator(retriever, generator)

	first, err := o.HandleMessage(context.Background(), "Where is my order?", "")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	res, err := o.HandleMessage(context.Background(), "hello", first.SessionToken)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if res.Reply == GreetingReply {
		t.Fatal("mid-conversation greeting should go to the model")
	}
	if generator.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", generator.calls)
	}
}

func TestAcknowledgementSkipsRetrievalButGenerates(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{reply: "You're welcome!"}
	o, _ := newTestOrchestrator(retriever, generator)

	res, err := o.HandleMessage(context.Background(), "thanks", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if res.Reply != "You're welcome!" {
		t.Fatalf("reply = %q", res.Reply)
	}
	if retriever.calls != 0 {
		t.Fatalf("retriever called %d times on an acknowledgement", retriever.calls)
	}
	if generator.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", generator.calls)
	}
	if strings.Contains(generator.last.Instructions, "**RELEVANT KNOWLEDGE:**") {
		t.Fatal("acknowledgement prompt should carry no knowledge block")
	}
}

func TestSubstantiveTurnCarriesKnowledge(t *testing.T) {
	retriever := &stubRetriever{
		entries: []knowledge.ScoredEntry{
			{Entry: knowledge.Entry{Question: "What is your return policy?", Answer: "30 days."}, Score: 0.9},
		},
		hit: true,
	}
	generator := &stubGenerator{reply: "You can return items within 30 days."}
	o, store := newTestOrchestrator(retriever, generator)

	res, err := o.HandleMessage(context.Background(), "Can I return my jacket?", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if retriever.calls != 1 {
		t.Fatalf("retriever calls = %d, want 1", retriever.calls)
	}
	if !res.CacheHit {
		t.Fatal("cache hit not propagated")
	}
	if !strings.Contains(generator.last.Instructions, "1. What is your return policy? → 30 days.") {
		t.Fatalf("knowledge block missing from instructions:\n%s", generator.last.Instructions)
	}

	history, _ := store.History(context.Background(), res.ConversationID, 0)
	if len(history) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(history))
	}
}

func TestGenerationFailureDoesNotPersist(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{err: errors.New("provider down")}
	o, store := newTestOrchestrator(retriever, generator)

	first, err := o.HandleMessage(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("greeting turn: %v", err)
	}

	_, err = o.HandleMessage(context.Background(), "Where is my refund?", first.SessionToken)
	if err == nil {
		t.Fatal("expected turn error")
	}
	var te *TurnError
	if !errors.As(err, &te) {
		t.Fatalf("error type %T, want *TurnError", err)
	}
	if te.Stage != "generate" {
		t.Fatalf("Stage = %q, want generate", te.Stage)
	}
	if te.UserReply != ApologyReply {
		t.Fatalf("UserReply = %q, want apology", te.UserReply)
	}

	// The failed turn must leave no trace: only the greeting pair.
	history, _ := store.History(context.Background(), first.ConversationID, 0)
	if len(history) != 2 {
		t.Fatalf("failed turn persisted messages: history length %d, want 2", len(history))
	}
}

// cancellingGenerator cancels the caller's context mid-generation and
// still returns a reply, mimicking a client that hung up just before
// the provider answered.
type cancellingGenerator struct {
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Generate(ctx context.Context, req prompt.Request) (string, error) {
	g.cancel()
	return "arrived after hangup", nil
}

func TestCancellationDuringGenerationIsNotPersisted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o, store := newTestOrchestrator(&stubRetriever{}, &cancellingGenerator{cancel: cancel})

	token := "cancelled-session"
	_, err := o.HandleMessage(ctx, "Where is my refund?", token)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	conv, found, err := store.FindByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if found {
		history, _ := store.History(context.Background(), conv.ID, 0)
		if len(history) != 0 {
			t.Fatalf("cancelled turn persisted %d messages, want 0", len(history))
		}
	}
}

func TestCancellationBeforeGreetingShortCircuitIsNotPersisted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, store := newTestOrchestrator(&stubRetriever{}, &stubGenerator{reply: "x"})

	token := "cancelled-greeting"
	_, err := o.HandleMessage(ctx, "hi", token)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	conv, found, _ := store.FindByToken(context.Background(), token)
	if found {
		history, _ := store.History(context.Background(), conv.ID, 0)
		if len(history) != 0 {
			t.Fatalf("cancelled greeting persisted %d messages, want 0", len(history))
		}
	}
}

func TestRetrievalFailureDegradesToNoContext(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("embedder unavailable")}
	generator := &stubGenerator{reply: "Happy to help in general terms."}
	o, _ := newTestOrchestrator(retriever, generator)

	res, err := o.HandleMessage(context.Background(), "Do you ship to Iceland?", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if res.Reply != "Happy to help in general terms." {
		t.Fatalf("reply = %q", res.Reply)
	}
	if strings.Contains(generator.last.Instructions, "**RELEVANT KNOWLEDGE:**") {
		t.Fatal("degraded turn should carry no knowledge block")
	}
}

func TestEmptyReplyFallback(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{reply: "   "}
	o, _ := newTestOrchestrator(retriever, generator)

	res, err := o.HandleMessage(context.Background(), "Do you ship abroad?", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if res.Reply != EmptyReply {
		t.Fatalf("reply = %q, want fallback", res.Reply)
	}
}

func TestValidation(t *testing.T) {
	o, _ := newTestOrchestrator(&stubRetriever{}, &stubGenerator{reply: "x"})

	var ve *ValidationError
	if _, err := o.HandleMessage(context.Background(), "   ", ""); !errors.As(err, &ve) {
		t.Fatalf("blank message: %v", err)
	}
	if _, err := o.HandleMessage(context.Background(), strings.Repeat("a", 2001), ""); !errors.As(err, &ve) {
		t.Fatalf("oversized message: %v", err)
	}
}

func TestSessionContinuity(t *testing.T) {
	generator := &stubGenerator{reply: "noted"}
	o, _ := newTestOrchestrator(&stubRetriever{}, generator)

	first, err := o.HandleMessage(context.Background(), "What sizes do you stock?", "")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := o.HandleMessage(context.Background(), "And in blue?", first.SessionToken)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatal("same token should continue the same conversation")
	}

	// Second turn's prompt sees the first pair as history.
	if len(generator.last.History) != 2 {
		t.Fatalf("history turns = %d, want 2", len(generator.last.History))
	}
	if generator.last.History[0].Role != prompt.RoleUser || generator.last.History[1].Role != prompt.RoleAssistant {
		t.Fatalf("history roles wrong: %+v", generator.last.History)
	}
}

func TestHistoryUnknownToken(t *testing.T) {
	o, _ := newTestOrchestrator(&stubRetriever{}, &stubGenerator{reply: "x"})

	history, err := o.History(context.Background(), "no-such-token", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history length = %d, want 0", len(history))
	}
}
