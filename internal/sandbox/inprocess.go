package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// allowedGoPackages is the import surface for interpreted snippets. Packages
// that reach the filesystem, network or processes are not loaded.
var allowedGoPackages = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"math/rand":       true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
	"unicode/utf8":    true,
}

// restrictedSymbols is stdlib.Symbols filtered to allowedGoPackages.
var restrictedSymbols = func() interp.Exports {
	out := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		i := strings.LastIndex(key, "/")
		if i < 0 {
			continue
		}
		if allowedGoPackages[key[:i]] {
			out[key] = syms
		}
	}
	return out
}()

// InProcessRunner interprets Go snippets inside the server process. It is
// meant for development and tests. Other languages go to the fallback.
type InProcessRunner struct {
	timeout  time.Duration
	fallback Runner
	logger   *slog.Logger
}

// NewInProcessRunner creates an interpreter-backed runner. A nil fallback
// reports non-Go snippets as disabled.
func NewInProcessRunner(timeout time.Duration, fallback Runner, logger *slog.Logger) *InProcessRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if fallback == nil {
		fallback = DisabledRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessRunner{timeout: timeout, fallback: fallback, logger: logger}
}

// Run implements Runner.
func (r *InProcessRunner) Run(ctx context.Context, s Snippet) Result {
	if s.Language != Go {
		return r.fallback.Run(ctx, s)
	}

	start := time.Now()
	res := r.interpret(ctx, s.Code)
	res.Language = Go
	res.Duration = time.Since(start)
	r.logger.Info("Interpreted snippet finished",
		"outcome", res.Outcome.String(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (r *InProcessRunner) interpret(ctx context.Context, code string) Result {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stdout := newOutputBuffer(defaultCaptureLimit)
	stderr := newOutputBuffer(defaultCaptureLimit)
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(restrictedSymbols); err != nil {
		return Result{Outcome: OutcomeLaunchError, Err: fmt.Errorf("load symbols: %w", err)}
	}

	if _, err := i.EvalWithContext(runCtx, goProgram(code, "Run")); err != nil {
		return interpretResult(runCtx, err, stdout, stderr)
	}
	_, err := i.EvalWithContext(runCtx, "main.Run()")
	return interpretResult(runCtx, err, stdout, stderr)
}

func interpretResult(runCtx context.Context, err error, stdout, stderr *outputBuffer) Result {
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Outcome = OutcomeTimeout
	case err != nil:
		res.Outcome = OutcomeFailed
		if res.Stderr == "" {
			res.Stderr = res.Err.Error()
		}
	default:
		res.Outcome = OutcomeOK
	}
	return res
}
