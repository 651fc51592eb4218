package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/codemate/internal/sandbox"
	"github.com/ashureev/codemate/internal/tools"
)

const (
	defaultResult  = "Task completed"
	noCalculation  = "No calculation found"
	searchPattern  = "*.*"
	pathPattern    = "*.py"
	defaultFileArg = "example.txt"
)

// ExecutorOptions wires the executor to its tools.
type ExecutorOptions struct {
	Runner     sandbox.Runner
	SearchRoot string
	FilePath   string
	// SystemReport renders the capabilities report. Defaults to probing the host.
	SystemReport func(ctx context.Context) string
	// Observer, when set, sees the task after every status change.
	Observer func(Task)
	Logger   *slog.Logger
}

// Executor runs planned tasks to completion.
type Executor struct {
	opts ExecutorOptions
}

// NewExecutor creates an executor. A nil runner disables code execution.
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.Runner == nil {
		opts.Runner = sandbox.DisabledRunner{}
	}
	if opts.SearchRoot == "" {
		opts.SearchRoot = "."
	}
	if opts.FilePath == "" {
		opts.FilePath = defaultFileArg
	}
	if opts.SystemReport == nil {
		opts.SystemReport = func(ctx context.Context) string {
			return tools.DiscoverSystem(ctx).String()
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{opts: opts}
}

// Execute moves t from pending through in_progress to completed. Tool
// failures end up in t.Result; the task always completes.
func (e *Executor) Execute(ctx context.Context, t *Task) {
	e.transition(t, StatusInProgress)

	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("Task panicked", "task_id", t.ID, "task_kind", t.Kind, "panic", r)
			t.Result = fmt.Sprintf("Task failed: %v", r)
		}
		e.transition(t, StatusCompleted)
	}()

	t.Result = e.run(ctx, t)
}

func (e *Executor) run(ctx context.Context, t *Task) string {
	switch t.Kind {
	case KindSearch:
		return e.search(t.Description)
	case KindFile:
		return tools.ReadFile(e.opts.FilePath)
	case KindCalculate:
		expression := tools.ExtractExpression(t.Request)
		if expression == "" {
			return noCalculation
		}
		return tools.Calculate(expression)
	case KindCapabilities:
		return e.opts.SystemReport(ctx)
	case KindExecute:
		snippet, ok := sandbox.Extract(t.Request)
		if !ok {
			return sandbox.NoCodeMessage
		}
		return e.opts.Runner.Run(ctx, snippet).Text()
	default:
		return defaultResult
	}
}

// search lists *.py files under a path named in the text, or every file with
// an extension in the search root. An empty or failed listing is retried
// once against the search root.
func (e *Executor) search(text string) string {
	var result string
	if dir := tools.ExtractPath(text); dir != "" {
		result = tools.SearchInPath(dir, pathPattern)
	} else {
		result = tools.SearchFiles(e.opts.SearchRoot, searchPattern)
	}
	if result == "" || strings.Contains(result, "Error") {
		result = tools.SearchFiles(e.opts.SearchRoot, searchPattern)
	}
	return result
}

func (e *Executor) transition(t *Task, to Status) {
	from := t.Status
	t.Status = to
	e.opts.Logger.Debug("Task status changed",
		"task_id", t.ID,
		"task_kind", t.Kind,
		"from", from,
		"to", to,
	)
	if e.opts.Observer != nil {
		e.opts.Observer(*t)
	}
}
