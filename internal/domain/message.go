// Package domain contains core domain types for the assistant.
package domain

import (
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single chat message. Messages are never mutated once appended
// to a history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Route records how the dispatcher handled a turn.
type Route string

const (
	RouteConversational Route = "conversational"
	RouteAgentic        Route = "agentic"
)

// Turn is one persisted request/response exchange.
type Turn struct {
	ID         int64     `json:"id"`
	SessionKey string    `json:"session_key"`
	Route      Route     `json:"route"`
	TaskKind   string    `json:"task_kind,omitempty"`
	Request    string    `json:"request"`
	Response   string    `json:"response"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Duration returns the turn latency.
func (t *Turn) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}
