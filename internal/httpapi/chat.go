package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/storefront-labs/concierge/internal/chat"
	"github.com/storefront-labs/concierge/internal/conversation"
)

type chatMessageRequest struct {
	Message      string `json:"message"`
	SessionToken string `json:"session_token,omitempty"`
}

type chatMessageResponse struct {
	Reply        string `json:"reply"`
	SessionToken string `json:"session_token"`
	CacheHit     bool   `json:"cache_hit"`
}

type chatHistoryResponse struct {
	SessionToken string                 `json:"session_token"`
	Messages     []conversation.Message `json:"messages"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.orchestrator.HandleMessage(r.Context(), req.Message, req.SessionToken)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, chatMessageResponse{
		Reply:        res.Reply,
		SessionToken: res.SessionToken,
		CacheHit:     res.CacheHit,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("session_token"))
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_session_token", "query parameter session_token is required")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := s.orchestrator.History(r.Context(), token, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", "could not load conversation history")
		return
	}

	respondJSON(w, http.StatusOK, chatHistoryResponse{
		SessionToken: token,
		Messages:     messages,
	})
}

// respondTurnError maps pipeline failures onto status codes. Customers
// get the friendly reply text; raw causes stay in the logs.
func (s *Server) respondTurnError(w http.ResponseWriter, err error) {
	var ve *chat.ValidationError
	if errors.As(err, &ve) {
		respondError(w, http.StatusBadRequest, "invalid_message", ve.Reason)
		return
	}

	var te *chat.TurnError
	if errors.As(err, &te) {
		status := http.StatusInternalServerError
		code := "turn_failed"
		if te.Stage == "generate" {
			status = http.StatusServiceUnavailable
			code = "generation_unavailable"
		}
		respondJSON(w, status, map[string]any{
			"error": te.UserReply,
			"code":  code,
		})
		return
	}

	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}

	respondError(w, http.StatusInternalServerError, "internal_error", "unexpected failure")
}
