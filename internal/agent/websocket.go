package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/codemate/internal/identity"
	"github.com/ashureev/codemate/internal/session"
	"github.com/coder/websocket"
)

// wsMessage is a chat socket frame in either direction.
type wsMessage struct {
	Type     string        `json:"type"`
	Content  string        `json:"content,omitempty"`
	Response *ChatResponse `json:"response,omitempty"`
}

// WebSocketHandler serves GET /ws/chat. Each "chat" frame is dispatched and
// answered with one "response" frame.
type WebSocketHandler struct {
	responder     Responder
	conns         *Connections
	rateLimiter   *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a chat socket handler sharing the HTTP
// handler's rate limiter.
func NewWebSocketHandler(h *Handler, conns *Connections, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		responder:     h.responder,
		conns:         conns,
		rateLimiter:   h.rateLimiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(defaultMaxRequestBodySize)

	sessionKey := session.Key(userID, sessionID)
	h.conns.Register(sessionKey, ws)
	defer h.conns.Unregister(sessionKey, ws)

	h.readLoop(r.Context(), ws, userID, sessionKey)
	slog.Info("Chat socket ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionKey string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := writeFrame(ctx, ws, wsMessage{Type: "error", Content: "invalid message"}); err != nil {
				return
			}
			continue
		}

		var reply wsMessage
		switch msg.Type {
		case "chat":
			reply = h.chat(ctx, userID, sessionKey, msg.Content)
		case "clear":
			h.responder.ClearHistory(ctx, sessionKey)
			reply = wsMessage{Type: "cleared"}
		case "ping":
			reply = wsMessage{Type: "pong"}
		default:
			reply = wsMessage{Type: "error", Content: "unknown message type"}
		}

		if err := writeFrame(ctx, ws, reply); err != nil {
			slog.Debug("Failed to write WebSocket frame", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *WebSocketHandler) chat(ctx context.Context, userID, sessionKey, content string) wsMessage {
	message := strings.TrimSpace(content)
	if message == "" {
		return wsMessage{Type: "error", Content: "No message provided"}
	}
	if !h.rateLimiter.Allow(userID) {
		return wsMessage{Type: "error", Content: "rate limit exceeded"}
	}
	resp := h.responder.Respond(ctx, sessionKey, message).Response()
	return wsMessage{Type: "response", Response: &resp}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, v wsMessage) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
