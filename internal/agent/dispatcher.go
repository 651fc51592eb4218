package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/codemate/internal/domain"
	"github.com/ashureev/codemate/internal/llm"
	"github.com/ashureev/codemate/internal/prompt"
	"github.com/ashureev/codemate/internal/session"
	"github.com/ashureev/codemate/internal/store"
	"github.com/ashureev/codemate/internal/task"
)

const (
	turnWriteTimeout  = 5 * time.Second
	defaultTurnsLimit = 20
)

var capabilities = Capabilities{
	Tools:            []string{"search_files", "read_file", "calculate"},
	AgenticMode:      true,
	AvailableActions: []string{"file_operations", "calculations", "searches"},
}

// DispatcherOptions wires a Dispatcher.
type DispatcherOptions struct {
	Sessions *session.Registry
	Model    llm.Provider
	Executor *task.Executor
	// Turns, when set, receives every completed exchange.
	Turns  store.Repository
	Logger *slog.Logger
}

// Dispatcher routes each message to the task path or the model and keeps
// per-session history.
type Dispatcher struct {
	sessions *session.Registry
	model    llm.Provider
	executor *task.Executor
	turns    store.Repository
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry(0, session.DefaultHistoryLimit, 0)
	}
	if opts.Executor == nil {
		opts.Executor = task.NewExecutor(task.ExecutorOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		sessions: opts.Sessions,
		model:    opts.Model,
		executor: opts.Executor,
		turns:    opts.Turns,
		logger:   opts.Logger,
	}
}

// IsAgentic reports whether message should go through the task path.
func IsAgentic(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range agenticKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Respond handles one user message for the session identified by sessionKey.
func (d *Dispatcher) Respond(ctx context.Context, sessionKey, message string) Reply {
	start := time.Now()

	var reply Reply
	if IsAgentic(message) {
		reply = d.agentic(ctx, sessionKey, message)
	} else {
		reply = Reply{
			Text:  d.converse(ctx, sessionKey, message),
			Route: domain.RouteConversational,
		}
	}
	reply.Duration = time.Since(start)

	d.logger.Info("Message dispatched",
		"session_key", sessionKey,
		"route", reply.Route,
		"task_kind", reply.TaskKind,
		"duration_ms", reply.Duration.Milliseconds(),
	)
	d.recordTurn(ctx, sessionKey, message, reply)
	return reply
}

func (d *Dispatcher) agentic(ctx context.Context, sessionKey, message string) Reply {
	tasks := task.Plan(message)
	results := make([]string, 0, len(tasks))
	for i := range tasks {
		d.executor.Execute(ctx, &tasks[i])
		results = append(results, tasks[i].Result)
	}

	reply := Reply{Route: domain.RouteAgentic}
	if len(tasks) > 0 {
		reply.TaskKind = tasks[0].Kind
	}

	// Code runs answer with the raw tool output.
	if strings.Contains(strings.ToLower(message), "execute") && len(results) > 0 {
		reply.Text = results[0]
		return reply
	}

	followUp := fmt.Sprintf("The user asked: %s\n\nResults: %s\n\nProvide a helpful response.",
		message, strings.Join(results, "\n"))
	reply.Text = d.converse(ctx, sessionKey, followUp)
	return reply
}

// converse runs one model call over the session history. No lock is held
// while the model call is in flight.
func (d *Dispatcher) converse(ctx context.Context, sessionKey, message string) string {
	history := d.sessions.Get(sessionKey)
	snapshot := history.AppendAndSnapshot(domain.Message{Role: domain.RoleUser, Content: message})

	convCtx := session.BuildContext(snapshot)
	d.logger.Debug("Conversation context",
		"session_key", sessionKey,
		"languages", convCtx.Languages,
		"skill", convCtx.Skill,
		"question_types", convCtx.QuestionTypes,
	)

	messages := make([]domain.Message, 0, len(snapshot)+1)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: prompt.Build(convCtx)})
	messages = append(messages, snapshot...)

	if d.model == nil {
		return replyUnavailable
	}
	raw, err := d.model.Chat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		d.logger.Error("Model call failed", "session_key", sessionKey, "error", err)
		return modelFailureReply(err)
	}

	text := prompt.Clean(raw)
	history.Append(domain.Message{Role: domain.RoleAssistant, Content: text})
	return text
}

func modelFailureReply(err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return replyTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return replyUnavailable
	default:
		return replyModelError
	}
}

func (d *Dispatcher) recordTurn(ctx context.Context, sessionKey, message string, reply Reply) {
	if d.turns == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), turnWriteTimeout)
	defer cancel()

	err := d.turns.RecordTurn(writeCtx, &domain.Turn{
		SessionKey: sessionKey,
		Route:      reply.Route,
		TaskKind:   string(reply.TaskKind),
		Request:    message,
		Response:   reply.Text,
		DurationMs: reply.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		d.logger.Warn("Failed to record turn", "session_key", sessionKey, "error", err)
	}
}

// ClearHistory forgets the session's history and its persisted turns.
func (d *Dispatcher) ClearHistory(ctx context.Context, sessionKey string) {
	if h, ok := d.sessions.Peek(sessionKey); ok {
		h.Clear()
	}
	if d.turns == nil {
		return
	}
	deleted, err := d.turns.DeleteSessionTurns(ctx, sessionKey)
	if err != nil {
		d.logger.Warn("Failed to delete session turns", "session_key", sessionKey, "error", err)
		return
	}
	d.logger.Info("Session history cleared", "session_key", sessionKey, "turns_deleted", deleted)
}

// ContextSnapshot summarizes the session's recent history.
func (d *Dispatcher) ContextSnapshot(sessionKey string) ContextSnapshot {
	var history []domain.Message
	if h, ok := d.sessions.Peek(sessionKey); ok {
		history = h.Snapshot()
	}
	c := session.BuildContext(history)
	return ContextSnapshot{
		Languages:          c.Languages,
		Topics:             c.Topics,
		Skill:              c.Skill,
		QuestionTypes:      c.QuestionTypes,
		ErrorSnippets:      c.ErrorSnippets,
		ConversationLength: len(history),
	}
}

// Capabilities returns the static capabilities descriptor.
func (d *Dispatcher) Capabilities() Capabilities {
	return Capabilities{
		Tools:            append([]string(nil), capabilities.Tools...),
		AgenticMode:      capabilities.AgenticMode,
		AvailableActions: append([]string(nil), capabilities.AvailableActions...),
	}
}

// Turns lists persisted exchanges for the session, newest first.
func (d *Dispatcher) Turns(ctx context.Context, sessionKey string, limit int) ([]domain.Turn, error) {
	if d.turns == nil {
		return []domain.Turn{}, nil
	}
	if limit <= 0 {
		limit = defaultTurnsLimit
	}
	return d.turns.RecentTurns(ctx, sessionKey, limit)
}
