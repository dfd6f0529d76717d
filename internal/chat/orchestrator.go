package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/concierge/internal/conversation"
	"github.com/storefront-labs/concierge/internal/gate"
	"github.com/storefront-labs/concierge/internal/knowledge"
	"github.com/storefront-labs/concierge/internal/observability"
	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/retrieval"
)

// Canned replies for the paths that never reach the model.
const (
	GreetingReply = "Hi there! 👋 I'm here to help you with questions about our store, products, orders, shipping, returns, and more. What can I help you with today?"
	ApologyReply  = "I apologize, but I'm experiencing technical difficulties right now. Please try again in a moment, or contact our support team directly."
	EmptyReply    = "I apologize, but I couldn't generate a response. Please try again."
)

// ValidationError rejects a message before any work happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// TurnError is a failed turn with a customer-facing reply attached. The
// transport picks the status code from the stage; UserReply is what the
// customer should see instead of raw error detail.
type TurnError struct {
	Stage     string
	UserReply string
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at %s: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// Retriever is the knowledge lookup the orchestrator depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieval.Result, error)
}

// Generator produces the assistant reply for an assembled request.
type Generator interface {
	Generate(ctx context.Context, req prompt.Request) (string, error)
}

// Result is one successfully completed turn.
type Result struct {
	Reply          string
	SessionToken   string
	ConversationID string
	GateKind       gate.Kind
	CacheHit       bool
}

// Orchestrator drives one chat turn through gate, retrieval, prompt
// assembly, generation, and the ledger.
type Orchestrator struct {
	gate      *gate.Gate
	retriever Retriever
	assembler *prompt.Assembler
	generator Generator
	store     conversation.Store
	metrics   *observability.Metrics

	maxMessageLength int
	historyLimit     int
}

func NewOrchestrator(
	g *gate.Gate,
	retriever Retriever,
	assembler *prompt.Assembler,
	generator Generator,
	store conversation.Store,
	metrics *observability.Metrics,
	maxMessageLength, historyLimit int,
) *Orchestrator {
	return &Orchestrator{
		gate:             g,
		retriever:        retriever,
		assembler:        assembler,
		generator:        generator,
		store:            store,
		metrics:          metrics,
		maxMessageLength: maxMessageLength,
		historyLimit:     historyLimit,
	}
}

// HandleMessage processes one turn. A missing session token starts a
// fresh conversation; the token to continue it is always returned on
// success. On a generation failure the turn is NOT persisted, so a
// retry by the customer replays it cleanly.
func (o *Orchestrator) HandleMessage(ctx context.Context, text, sessionToken string) (Result, error) {
	started := time.Now()

	if err := o.validate(text); err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(sessionToken) == "" {
		sessionToken = uuid.NewString()
	}

	conv, err := o.store.GetOrCreate(ctx, sessionToken)
	if err != nil {
		o.observeOutcome("error_persistence", started)
		return Result{}, &TurnError{Stage: "persist", UserReply: ApologyReply, Err: err}
	}

	history, err := o.loadHistory(ctx, conv)
	if err != nil {
		o.observeOutcome("error_persistence", started)
		return Result{}, &TurnError{Stage: "persist", UserReply: ApologyReply, Err: err}
	}

	gateStart := time.Now()
	kind := o.gate.Classify(text)
	o.metrics.ObserveStage("gate", time.Since(gateStart))
	o.metrics.GateDecisions.WithLabelValues(string(kind)).Inc()

	// A greeting that opens a conversation gets the canned reply; no
	// retrieval, no generation. Mid-conversation greetings fall through
	// so the model can respond in context.
	if kind == gate.KindGreeting && len(history) == 0 {
		return o.finishTurn(ctx, conv, sessionToken, text, GreetingReply, kind, false, started)
	}

	entries, cacheHit := o.retrieve(ctx, kind, text)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	req := o.assembler.Assemble(text, toTurns(history), entries)

	genStart := time.Now()
	reply, err := o.generator.Generate(ctx, req)
	o.metrics.ObserveStage("generate", time.Since(genStart))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		o.metrics.GenerationErrors.Inc()
		o.observeOutcome("error_generation", started)
		return Result{}, &TurnError{Stage: "generate", UserReply: ApologyReply, Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		log.Printf("empty reply for conversation %s, using fallback", conv.ID)
		reply = EmptyReply
	}

	return o.finishTurn(ctx, conv, sessionToken, text, reply, kind, cacheHit, started)
}

// History returns the recent messages for a session token, oldest
// first. A token with no conversation yields an empty history.
func (o *Orchestrator) History(ctx context.Context, sessionToken string, limit int) ([]conversation.Message, error) {
	conv, found, err := o.store.FindByToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if !found {
		return []conversation.Message{}, nil
	}
	if limit <= 0 {
		limit = o.historyLimit
	}
	return o.store.History(ctx, conv.ID, limit)
}

func (o *Orchestrator) validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Reason: "message must not be empty"}
	}
	if len(text) > o.maxMessageLength {
		return &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters", o.maxMessageLength)}
	}
	return nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, conv conversation.Conversation) ([]conversation.Message, error) {
	if conv.MessageCount == 0 {
		return nil, nil
	}
	return o.store.History(ctx, conv.ID, o.historyLimit)
}

// retrieve runs the knowledge lookup for substantive messages. A
// retrieval failure degrades to a no-context turn rather than losing
// the customer's message; only caller cancellation aborts.
func (o *Orchestrator) retrieve(ctx context.Context, kind gate.Kind, text string) ([]knowledge.ScoredEntry, bool) {
	if kind != gate.KindSubstantive {
		return nil, false
	}

	retrieveStart := time.Now()
	res, err := o.retriever.Retrieve(ctx, text)
	o.metrics.ObserveStage("retrieve", time.Since(retrieveStart))
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("retrieval failed, answering without knowledge context: %v", err)
			o.metrics.ObserveIndicator("retrieval_degraded")
		}
		return nil, false
	}

	if res.CacheHit {
		o.metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		o.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return res.Entries, res.CacheHit
}

func (o *Orchestrator) finishTurn(
	ctx context.Context,
	conv conversation.Conversation,
	sessionToken, userText, reply string,
	kind gate.Kind,
	cacheHit bool,
	started time.Time,
) (Result, error) {
	// A cancelled caller gets nothing persisted, even if the reply is
	// already in hand. The customer's retry replays the turn cleanly.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	persistStart := time.Now()
	_, _, err := o.store.AppendTurn(ctx, conv.ID, userText, reply)
	o.metrics.ObserveStage("persist", time.Since(persistStart))
	if err != nil {
		o.observeOutcome("error_persistence", started)
		return Result{}, &TurnError{Stage: "persist", UserReply: ApologyReply, Err: err}
	}

	outcome := "ok"
	if kind != gate.KindSubstantive {
		outcome = "short_circuit"
	}
	o.observeOutcome(outcome, started)

	return Result{
		Reply:          reply,
		SessionToken:   sessionToken,
		ConversationID: conv.ID,
		GateKind:       kind,
		CacheHit:       cacheHit,
	}, nil
}

func (o *Orchestrator) observeOutcome(outcome string, started time.Time) {
	o.metrics.ObserveTurn(outcome, time.Since(started))
}

func toTurns(history []conversation.Message) []prompt.Turn {
	turns := make([]prompt.Turn, 0, len(history))
	for _, m := range history {
		role := prompt.RoleUser
		if m.Sender == conversation.SenderAssistant {
			role = prompt.RoleAssistant
		}
		turns = append(turns, prompt.Turn{Role: role, Content: m.Content})
	}
	return turns
}
