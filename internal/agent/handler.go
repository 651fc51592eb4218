package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/codemate/internal/api"
	"github.com/ashureev/codemate/internal/config"
	"github.com/ashureev/codemate/internal/domain"
	"github.com/ashureev/codemate/internal/identity"
	"github.com/ashureev/codemate/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

const maxHistoryLimit = 100

// Handler serves the chat API.
type Handler struct {
	responder   Responder
	rateLimiter *RateLimiter
	maxBodySize int64
}

// RateLimiter implements a per-user rate limiter.
// The key is userID only, not userID:sessionID, so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := r.fresh(r.requests[key], now.Add(-r.window))

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Stop ends the eviction goroutine.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// evictLoop periodically removes expired keys from the requests map.
func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evict(time.Now())
		}
	}
}

func (r *RateLimiter) evict(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	for key, times := range r.requests {
		if fresh := r.fresh(times, cutoff); len(fresh) == 0 {
			delete(r.requests, key)
		} else {
			r.requests[key] = fresh
		}
	}
}

func (r *RateLimiter) fresh(times []time.Time, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// NewHandler creates a chat handler. A nil cfg uses the default limits.
func NewHandler(responder Responder, cfg *config.Config) *Handler {
	rateLimitRequests := 20
	rateLimitWindow := time.Minute
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
	}

	return &Handler{
		responder:   responder,
		rateLimiter: NewRateLimiter(rateLimitRequests, rateLimitWindow),
		maxBodySize: defaultMaxRequestBodySize,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/clear", h.HandleClear)
		r.Get("/context", h.HandleContext)
		r.Get("/history", h.HandleHistory)
		r.Get("/agent/status", h.HandleStatus)
		r.Post("/agent/chat", h.HandleChatStream)
	})
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sessionKey, message, ok := h.readChat(w, r)
	if !ok {
		return
	}

	reply := h.responder.Respond(r.Context(), sessionKey, message)
	api.JSON(w, http.StatusOK, reply.Response())
}

// HandleChatStream handles POST /api/agent/chat. The reply is delivered as a
// server-sent "message" event followed by "done".
func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	sessionKey, message, ok := h.readChat(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if err := writeSSE(w, "status", `{"status":"thinking"}`); err != nil {
		slog.Warn("failed to write SSE status event", "error", err)
		return
	}
	flusher.Flush()

	reply := h.responder.Respond(r.Context(), sessionKey, message)

	data, err := json.Marshal(reply.Response())
	if err != nil {
		slog.Warn("failed to marshal chat response", "error", err)
		if writeErr := writeSSE(w, "error", "failed to serialize response"); writeErr != nil {
			slog.Warn("failed to write SSE serialization error", "error", writeErr)
		}
		flusher.Flush()
		return
	}
	if err := writeSSE(w, "message", string(data)); err != nil {
		slog.Warn("failed to write SSE message event", "error", err)
		return
	}
	if err := writeSSE(w, "done", "{}"); err != nil {
		slog.Warn("failed to write SSE done event", "error", err)
		return
	}
	flusher.Flush()
}

// readChat validates and decodes a chat request. It writes the error response
// itself and reports false when the request must not be dispatched.
func (h *Handler) readChat(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}

	if !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return "", "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return "", "", false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return "", "", false
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		api.Error(w, http.StatusBadRequest, "No message provided")
		return "", "", false
	}

	slog.Info("Chat request",
		"user_id", userID,
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(message),
	)
	return session.Key(userID, sessionID), message, true
}

// HandleClear handles POST /api/clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.responder.ClearHistory(r.Context(), requestSessionKey(r))
	api.JSON(w, http.StatusOK, map[string]string{"message": "Chat cleared"})
}

// HandleContext handles GET /api/context.
func (h *Handler) HandleContext(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.responder.ContextSnapshot(requestSessionKey(r)))
}

// HandleStatus handles GET /api/agent/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, h.responder.Capabilities())
}

// HandleHistory handles GET /api/history?limit=N.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	turns, err := h.responder.Turns(r.Context(), requestSessionKey(r), limit)
	if err != nil {
		slog.Error("Failed to list turns", "error", err)
		api.Error(w, http.StatusInternalServerError, "Error getting history")
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	api.JSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func requestSessionKey(r *http.Request) string {
	return session.Key(identity.UserIDFromContext(r.Context()), identity.SessionIDFromContext(r.Context()))
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
