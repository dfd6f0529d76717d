package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/storefront-labs/concierge/internal/chat"
)

type wsChatFrame struct {
	Text         string `json:"text"`
	SessionToken string `json:"session_token,omitempty"`
}

type wsReplyFrame struct {
	Type         string `json:"type"`
	Reply        string `json:"reply,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	Error        string `json:"error,omitempty"`
	Code         string `json:"code,omitempty"`
}

// handleChatWS runs a persistent chat session over one connection. The
// session token rides on every frame, so a reconnecting client resumes
// the same conversation.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	sessionToken := strings.TrimSpace(r.URL.Query().Get("session_token"))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var frame wsChatFrame
		if err := decodeWSFrame(data, &frame); err != nil {
			s.writeWSFrame(conn, wsReplyFrame{Type: "error", Error: "invalid frame", Code: "invalid_frame"})
			continue
		}
		if frame.SessionToken != "" {
			sessionToken = frame.SessionToken
		}

		res, err := s.orchestrator.HandleMessage(r.Context(), frame.Text, sessionToken)
		if err != nil {
			s.writeWSFrame(conn, wsErrorFrame(err))
			continue
		}
		sessionToken = res.SessionToken

		if !s.writeWSFrame(conn, wsReplyFrame{
			Type:         "reply",
			Reply:        res.Reply,
			SessionToken: res.SessionToken,
		}) {
			return
		}
	}
}

func (s *Server) writeWSFrame(conn *websocket.Conn, frame wsReplyFrame) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(frame) == nil
}

func wsErrorFrame(err error) wsReplyFrame {
	var ve *chat.ValidationError
	if errors.As(err, &ve) {
		return wsReplyFrame{Type: "error", Error: ve.Reason, Code: "invalid_message"}
	}
	var te *chat.TurnError
	if errors.As(err, &te) {
		code := "turn_failed"
		if te.Stage == "generate" {
			code = "generation_unavailable"
		}
		return wsReplyFrame{Type: "error", Error: te.UserReply, Code: code}
	}
	return wsReplyFrame{Type: "error", Error: "unexpected failure", Code: "internal_error"}
}

func decodeWSFrame(data []byte, out *wsChatFrame) error {
	return json.Unmarshal(data, out)
}
