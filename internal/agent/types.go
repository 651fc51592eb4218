// Package agent implements the chat dispatcher and its HTTP and WebSocket
// surfaces.
package agent

import (
	"math"
	"time"

	"github.com/ashureev/codemate/internal/classify"
	"github.com/ashureev/codemate/internal/domain"
	"github.com/ashureev/codemate/internal/task"
)

// User-facing replies for model-service failures.
const (
	replyTimeout     = "Request timed out. Please try again."
	replyUnavailable = "Cannot connect to the model service. Make sure it's running."
	replyModelError  = "I'm having trouble connecting to the AI model. Please try again."
)

// agenticKeywords route a message to the task path on any case-insensitive hit.
var agenticKeywords = []string{
	"search for", "find files", "read file", "calculate", "help me with",
	"can you", "what can you do", "system info", "capabilities",
	"execute", "run this",
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned for a chat call.
type ChatResponse struct {
	Response     string       `json:"response"`
	ResponseTime float64      `json:"response_time"`
	Route        domain.Route `json:"route"`
	TaskKind     task.Kind    `json:"task_kind,omitempty"`
}

// Reply is the outcome of one dispatched message.
type Reply struct {
	Text     string
	Route    domain.Route
	TaskKind task.Kind
	Duration time.Duration
}

// Response converts the reply into its wire form.
func (r Reply) Response() ChatResponse {
	return ChatResponse{
		Response:     r.Text,
		ResponseTime: math.Round(r.Duration.Seconds()*100) / 100,
		Route:        r.Route,
		TaskKind:     r.TaskKind,
	}
}

// Capabilities is the static descriptor of what the assistant can do.
type Capabilities struct {
	Tools            []string `json:"tools"`
	AgenticMode      bool     `json:"agentic_mode"`
	AvailableActions []string `json:"available_actions"`
}

// ContextSnapshot is the diagnostic view of a session's derived context.
type ContextSnapshot struct {
	Languages          []string                `json:"languages_mentioned"`
	Topics             []string                `json:"topics_discussed"`
	Skill              classify.SkillLevel     `json:"user_skill_level"`
	QuestionTypes      []classify.QuestionType `json:"recent_question_types"`
	ErrorSnippets      []string                `json:"recent_error_snippets"`
	ConversationLength int                     `json:"conversation_length"`
}
