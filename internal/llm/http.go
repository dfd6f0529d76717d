package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/reliability"
)

// HTTPAdapter forwards generation requests to a compatible HTTP endpoint.
// Useful for self-hosted models behind a thin JSON shim.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type httpTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type httpGenerateRequest struct {
	Instructions string     `json:"instructions,omitempty"`
	History      []httpTurn `json:"history,omitempty"`
	Message      string     `json:"message"`
}

func (a *HTTPAdapter) Generate(ctx context.Context, req prompt.Request) (string, error) {
	wire := httpGenerateRequest{
		Instructions: req.Instructions,
		Message:      req.UserMessage,
	}
	for _, turn := range req.History {
		wire.History = append(wire.History, httpTurn{Role: string(turn.Role), Content: turn.Content})
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return "", reliability.MarkTransient(fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		statusErr := fmt.Errorf("generation http status %d: %s", res.StatusCode, string(body))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return "", reliability.MarkTransient(statusErr)
		}
		return "", statusErr
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", reliability.MarkTransient(fmt.Errorf("read response: %w", err))
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		// Plain-text endpoints are allowed.
		return strings.TrimSpace(string(body)), nil
	}

	for _, k := range []string{"reply", "text", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s), nil
			}
		}
	}
	return "", fmt.Errorf("generation response missing reply field")
}
