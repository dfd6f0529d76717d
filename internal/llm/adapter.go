package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storefront-labs/concierge/internal/prompt"
)

// Adapter bridges the orchestrator with a text generation provider. A
// single call covers one turn; streaming is not part of the contract.
type Adapter interface {
	Generate(ctx context.Context, req prompt.Request) (string, error)
}

// Config controls adapter construction.
type Config struct {
	Mode        string
	APIKey      string
	Model       string
	HTTPURL     string
	MaxTokens   int
	Temperature float64
}

// NewAdapter selects a provider by mode. "auto" prefers Gemini when an
// API key is configured, then a generic HTTP endpoint, then the mock.
func NewAdapter(ctx context.Context, cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(ctx, cfg)
	case "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("google API key is required for gemini mode")
		}
		return NewGeminiAdapter(ctx, cfg)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("generation HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported llm adapter mode %q", cfg.Mode)
	}
}

func newAutoAdapter(ctx context.Context, cfg Config) (Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return NewGeminiAdapter(ctx, cfg)
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPAdapter(cfg.HTTPURL), nil
	}
	return NewMockAdapter(), nil
}
