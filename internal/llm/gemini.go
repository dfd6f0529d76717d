package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/reliability"
)

// GeminiAdapter generates replies through the Gemini API.
type GeminiAdapter struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewGeminiAdapter constructs the client once at startup; a failure here
// is a configuration error, not a per-call one.
func NewGeminiAdapter(ctx context.Context, cfg Config) (*GeminiAdapter, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiAdapter{
		client:      client,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (a *GeminiAdapter) Generate(ctx context.Context, req prompt.Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		contents = append(contents, genai.NewContentFromText(turn.Content, geminiRole(turn.Role)))
	}
	contents = append(contents, genai.NewContentFromText(req.UserMessage, genai.RoleUser))

	genCfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.Instructions) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if a.maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(a.maxTokens)
	}
	genCfg.Temperature = genai.Ptr(float32(a.temperature))

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, genCfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty generation response")
	}
	return text, nil
}

func geminiRole(r prompt.Role) genai.Role {
	if r == prompt.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// classifyGeminiError marks rate limits and server-side failures as
// transient so the retry loop can take another pass at them. Auth and
// bad-request failures stay terminal.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && reliability.IsRetryableHTTPStatus(apiErr.Code) {
		return reliability.MarkTransient(fmt.Errorf("generate content: %w", err))
	}
	return fmt.Errorf("generate content: %w", err)
}
