// Package session owns per-session conversation state: the bounded history
// buffer, the registry that hands out one buffer per session key, and the
// derived conversation context used to steer prompts.
package session

import (
	"sync"

	"github.com/ashureev/codemate/internal/domain"
)

// DefaultHistoryLimit is the number of messages a session remembers.
const DefaultHistoryLimit = 6

// History is a bounded, insertion-ordered message buffer. When full, the
// oldest entries are evicted first. Append and Snapshot are atomic with
// respect to each other.
type History struct {
	mu      sync.RWMutex
	entries []domain.Message
	limit   int
}

// NewHistory creates a history bounded to limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		entries: make([]domain.Message, 0, limit+1),
		limit:   limit,
	}
}

// Append adds a message and trims the buffer to its bound.
func (h *History) Append(msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(msg)
}

// AppendAndSnapshot adds a message and returns the resulting entries as one
// atomic step.
func (h *History) AppendAndSnapshot(msg domain.Message) []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.appendLocked(msg)
	out := make([]domain.Message, len(h.entries))
	copy(out, h.entries)
	return out
}

// Snapshot returns a copy of the current entries, oldest first.
func (h *History) Snapshot() []domain.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.Message, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of buffered messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Limit returns the buffer bound.
func (h *History) Limit() int {
	return h.limit
}

// Clear drops all buffered messages.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make([]domain.Message, 0, h.limit+1)
}

func (h *History) appendLocked(msg domain.Message) {
	h.entries = append(h.entries, msg)
	if over := len(h.entries) - h.limit; over > 0 {
		// Copy into a fresh slice so snapshots taken earlier keep their view.
		trimmed := make([]domain.Message, h.limit, h.limit+1)
		copy(trimmed, h.entries[over:])
		h.entries = trimmed
	}
}
