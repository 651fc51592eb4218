package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry hands out one History per session key. Sessions idle for longer
// than the TTL, or pushed out by the size bound, are evicted.
type Registry struct {
	mu        sync.Mutex
	histories *expirable.LRU[string, *History]
	limit     int
}

// NewRegistry creates a registry holding at most maxSessions histories,
// each bounded to historyLimit messages. A ttl of zero disables idle expiry.
func NewRegistry(maxSessions, historyLimit int, ttl time.Duration) *Registry {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	onEvict := func(key string, _ *History) {
		slog.Debug("Session history evicted", "session_key", key)
	}
	return &Registry{
		histories: expirable.NewLRU[string, *History](maxSessions, onEvict, ttl),
		limit:     historyLimit,
	}
}

// Get returns the history for key, creating it if needed. Every access
// refreshes the idle deadline.
func (r *Registry) Get(key string) *History {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.histories.Get(key)
	if !ok {
		h = NewHistory(r.limit)
		slog.Debug("Session history created", "session_key", key)
	}
	r.histories.Add(key, h)
	return h
}

// Peek returns the history for key without creating or refreshing it.
func (r *Registry) Peek(key string) (*History, bool) {
	return r.histories.Peek(key)
}

// Remove discards the history for key.
func (r *Registry) Remove(key string) {
	r.histories.Remove(key)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.histories.Len()
}

// Key builds a session key from a user and tab session id.
func Key(userID, sessionID string) string {
	return userID + ":" + sessionID
}
