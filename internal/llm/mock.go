package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-labs/concierge/internal/prompt"
)

// MockAdapter provides deterministic local replies when no provider is
// configured. It echoes the question and names how much context it saw,
// which makes end-to-end wiring visible without an API key.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Generate(ctx context.Context, req prompt.Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	base := strings.TrimSpace(req.UserMessage)
	if base == "" {
		base = "I'm listening."
	}

	if strings.Contains(req.Instructions, "**RELEVANT KNOWLEDGE:**") {
		return fmt.Sprintf("You asked: %s. I found store knowledge relevant to that.", base), nil
	}
	return fmt.Sprintf("You asked: %s. How else can I help with our store?", base), nil
}
