package agent

import (
	"context"

	"github.com/ashureev/codemate/internal/domain"
)

// Responder is what the HTTP and WebSocket layers need from the dispatcher.
type Responder interface {
	// Respond handles one user message for a session and never fails; errors
	// come back as reply text.
	Respond(ctx context.Context, sessionKey, message string) Reply

	// ClearHistory forgets the session's conversation.
	ClearHistory(ctx context.Context, sessionKey string)

	// ContextSnapshot summarizes the session's recent history.
	ContextSnapshot(sessionKey string) ContextSnapshot

	// Capabilities describes the available tools.
	Capabilities() Capabilities

	// Turns lists persisted exchanges for the session, newest first.
	Turns(ctx context.Context, sessionKey string, limit int) ([]domain.Turn, error)
}

// Ensure Dispatcher implements Responder.
var _ Responder = (*Dispatcher)(nil)
