// Package llm talks to the chat-completion model service.
package llm

import (
	"context"
	"errors"

	"github.com/ashureev/codemate/internal/domain"
)

// Failure classes callers branch on with errors.Is.
var (
	ErrTimeout     = errors.New("model request timed out")
	ErrUnavailable = errors.New("model service unreachable")
	ErrStatus      = errors.New("model service returned an error status")
)

// ChatRequest is one non-streaming completion call.
type ChatRequest struct {
	Messages []domain.Message
	// Images are base64-encoded and attached to the last message. Requests
	// carrying images use the longer vision timeout.
	Images []string
	// Model overrides the client's default model when set.
	Model string
}

// Provider produces a completion for a conversation.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}
