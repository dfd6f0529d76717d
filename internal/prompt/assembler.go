package prompt

import (
	"fmt"
	"strings"

	"github.com/storefront-labs/concierge/internal/knowledge"
)

// Role identifies the author of a prior turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message in the conversation, oldest first.
type Turn struct {
	Role    Role
	Content string
}

// Request is the fully assembled input for a generation call. The
// instructions block already contains any retrieved knowledge; adapters
// only have to map roles onto their provider's wire format.
type Request struct {
	Instructions string
	History      []Turn
	UserMessage  string
}

// DefaultInstructions is the standing persona and scope for the support
// agent. It is deliberately explicit about what the agent must refuse,
// since the model otherwise drifts into general-knowledge answers.
const DefaultInstructions = `You are an AI customer support agent for a small e-commerce store. Your role is to help customers with their questions about products, orders, shipping, returns, and general inquiries.

**YOUR PURPOSE:**
- Provide accurate, helpful, and friendly customer support
- Answer questions about products, shipping, returns, and store policies
- Guide customers through common issues and processes
- Maintain a professional yet warm and approachable tone

**WHAT YOU CAN DO:**
- Answer questions about products, shipping, returns, refunds, and store policies
- Provide information from the knowledge base
- Help with order tracking and status inquiries
- Explain store processes and procedures
- Offer general guidance on e-commerce topics related to the store

**WHAT YOU CANNOT DO:**
- Process orders, refunds, or payments (you can only provide information)
- Access customer accounts or personal information beyond what's shared
- Make changes to orders or accounts
- Provide technical support for third-party services
- Answer questions unrelated to the e-commerce store (e.g., general knowledge, unrelated topics)
- Provide medical, legal, or financial advice

**BRAND VOICE & COMMUNICATION STYLE:**
- Be friendly, empathetic, and solution-oriented
- Use clear, concise language (avoid jargon unless necessary)
- Be professional but warm and approachable
- Show genuine care for customer concerns
- Keep responses focused and relevant

**IMPORTANT GUIDELINES:**
- If a question is out of scope (not related to the store, products, orders, shipping, or returns), politely redirect: "I'm here to help with questions about our store, products, orders, shipping, and returns. Could you tell me how I can assist you with something related to our store?"
- If you don't know something specific, admit it honestly and offer to help find the answer or direct them to contact support
- Always prioritize accuracy over speed
- If a question requires account access or order modification, direct them to contact customer support directly`

// knowledgePreamble and knowledgeGuidance frame the retrieved entries so
// the model treats them as ground truth without refusing to answer when
// they come up empty.
const (
	knowledgePreamble = "**RELEVANT KNOWLEDGE:**"
	knowledgeGuidance = "Use this information to answer customer questions accurately. If it doesn't contain relevant information, you can still help with general guidance, but be clear about limitations."
)

// Assembler builds generation requests from static instructions, bounded
// conversation history, and retrieved knowledge entries.
type Assembler struct {
	instructions string
	historyLimit int
}

// NewAssembler builds an assembler. An empty instructions string falls
// back to DefaultInstructions; historyLimit must be positive.
func NewAssembler(instructions string, historyLimit int) *Assembler {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	return &Assembler{instructions: instructions, historyLimit: historyLimit}
}

// Assemble produces the request for one turn. History is passed oldest
// first and trimmed to the most recent historyLimit turns, so the window
// slides forward as the conversation grows. Entries may be nil when the
// turn skipped retrieval.
func (a *Assembler) Assemble(userMessage string, history []Turn, entries []knowledge.ScoredEntry) Request {
	if len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}
	bounded := make([]Turn, len(history))
	copy(bounded, history)

	instructions := a.instructions
	if block := FormatKnowledge(entries); block != "" {
		instructions = fmt.Sprintf("%s\n\n%s\n%s\n\n%s", instructions, knowledgePreamble, block, knowledgeGuidance)
	}

	return Request{
		Instructions: instructions,
		History:      bounded,
		UserMessage:  userMessage,
	}
}

// HistoryLimit reports the sliding-window size.
func (a *Assembler) HistoryLimit() int {
	return a.historyLimit
}

// FormatKnowledge renders retrieved entries as a compact numbered list.
// Answers are never truncated; the retriever's top-k already bounds the
// token cost.
func FormatKnowledge(entries []knowledge.ScoredEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(entries))
	for i, e := range entries {
		parts = append(parts, fmt.Sprintf("%d. %s → %s", i+1, e.Entry.Question, e.Entry.Answer))
	}
	return strings.Join(parts, "\n")
}
