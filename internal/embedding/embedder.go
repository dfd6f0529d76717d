package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Embedder converts text into a fixed-length vector. Implementations must
// be deterministic for identical input and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config controls embedder construction.
type Config struct {
	Mode      string
	APIKey    string
	Model     string
	Dimension int
}

// New builds an embedder for the configured mode.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
		}
		return NewLocalEmbedder(cfg.Dimension), nil
	case "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("GOOGLE_API_KEY is required for gemini embedding")
		}
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
	case "local":
		return NewLocalEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Mode)
	}
}
