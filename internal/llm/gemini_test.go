package llm

import (
	"testing"

	"google.golang.org/genai"

	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/reliability"
)

func TestGeminiRoleMapping(t *testing.T) {
	if got := geminiRole(prompt.RoleUser); got != genai.Role(genai.RoleUser) {
		t.Fatalf("geminiRole(user) = %q, want %q", got, genai.RoleUser)
	}
	if got := geminiRole(prompt.RoleAssistant); got != genai.Role(genai.RoleModel) {
		t.Fatalf("geminiRole(assistant) = %q, want %q", got, genai.RoleModel)
	}
}

func TestClassifyGeminiError(t *testing.T) {
	transient := classifyGeminiError(genai.APIError{Code: 503, Message: "overloaded"})
	if !reliability.IsTransient(transient) {
		t.Fatalf("503 should classify as transient, got %v", transient)
	}

	terminal := classifyGeminiError(genai.APIError{Code: 400, Message: "bad request"})
	if reliability.IsTransient(terminal) {
		t.Fatalf("400 should stay terminal, got %v", terminal)
	}
}
