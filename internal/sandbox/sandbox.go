// Package sandbox runs user-supplied code snippets with a hard deadline,
// captured output and guaranteed cleanup of every scratch directory.
//
// Runners are pluggable: code can be disabled entirely, run as a child
// process group on the host, run in a throwaway container, or (Go only, for
// development) interpreted in-process.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/codemate/internal/config"
)

// ErrDisabled is reported when code execution is turned off.
var ErrDisabled = errors.New("code execution is disabled")

// Language identifies a snippet's toolchain.
type Language string

const (
	Python Language = "python"
	CSharp Language = "csharp"
	Go     Language = "go"
)

// Label is the display name used in result strings.
func (l Language) Label() string {
	switch l {
	case Python:
		return "Python"
	case CSharp:
		return "C#"
	case Go:
		return "Go"
	default:
		return string(l)
	}
}

// Compiled reports whether the language goes through a build step.
func (l Language) Compiled() bool {
	return l == CSharp || l == Go
}

// Snippet is code extracted from a request.
type Snippet struct {
	Language Language
	Code     string
}

// Outcome classifies how a run ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFailed
	OutcomeTimeout
	OutcomeLaunchError
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeLaunchError:
		return "launch_error"
	case OutcomeDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the captured outcome of one run.
type Result struct {
	Language Language
	Outcome  Outcome
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
}

// Text renders the result as the string handed back to the user.
func (r Result) Text() string {
	label := r.Language.Label()
	switch r.Outcome {
	case OutcomeDisabled:
		return "Code execution is disabled on this server"
	case OutcomeTimeout:
		return label + " execution timeout"
	case OutcomeLaunchError:
		return fmt.Sprintf("%s Launch Error: %v", label, r.Err)
	case OutcomeFailed:
		msg := strings.TrimSpace(r.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(r.Stdout)
		}
		if msg == "" && r.Err != nil {
			msg = r.Err.Error()
		}
		return fmt.Sprintf("%s Error: %s", label, msg)
	}

	if r.Language.Compiled() {
		if out := strings.TrimSpace(r.Stdout); out != "" {
			return out
		}
		return label + " executed successfully"
	}
	if r.Stdout == "" {
		return "Code executed successfully (no output)"
	}
	return r.Stdout
}

// Runner executes a snippet. Implementations never return a Go error:
// every failure is encoded in the Result.
type Runner interface {
	Run(ctx context.Context, s Snippet) Result
}

// DisabledRunner refuses every snippet.
type DisabledRunner struct{}

// Run implements Runner.
func (DisabledRunner) Run(_ context.Context, s Snippet) Result {
	return Result{Language: s.Language, Outcome: OutcomeDisabled, Err: ErrDisabled}
}

// New builds the runner selected by cfg.Mode.
func New(cfg config.SandboxConfig, logger *slog.Logger) (Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Mode {
	case config.SandboxDisabled:
		return DisabledRunner{}, nil
	case config.SandboxSubprocess:
		return NewSubprocessRunner(OptionsFromConfig(cfg, logger)), nil
	case config.SandboxContainer:
		if config.IsContainer() {
			logger.Warn("Container sandbox running inside a container; SANDBOX_WORK_ROOT must be shared with the Docker host",
				"work_root", cfg.WorkRoot)
		}
		r, err := NewContainerRunner(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create container runner: %w", err)
		}
		return r, nil
	case config.SandboxInProcess:
		fallback := NewSubprocessRunner(OptionsFromConfig(cfg, logger))
		return NewInProcessRunner(cfg.Timeout, fallback, logger), nil
	default:
		return nil, fmt.Errorf("unknown sandbox mode %q", cfg.Mode)
	}
}
