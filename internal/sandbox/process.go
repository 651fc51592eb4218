package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ashureev/codemate/internal/config"
	"github.com/google/uuid"
)

const defaultWaitDelay = 2 * time.Second

// Options configures a SubprocessRunner.
type Options struct {
	Timeout      time.Duration
	WorkRoot     string
	Toolchains   map[Language]Toolchain
	CaptureLimit int
	Logger       *slog.Logger
}

// OptionsFromConfig derives runner options from the sandbox config.
func OptionsFromConfig(cfg config.SandboxConfig, logger *slog.Logger) Options {
	return Options{
		Timeout:    cfg.Timeout,
		WorkRoot:   cfg.WorkRoot,
		Toolchains: DefaultToolchains(cfg),
		Logger:     logger,
	}
}

// SubprocessRunner runs each snippet as a child process group in a fresh
// scratch directory. The group is killed when the deadline passes.
type SubprocessRunner struct {
	opts Options
}

// NewSubprocessRunner creates a runner from opts.
func NewSubprocessRunner(opts Options) *SubprocessRunner {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.WorkRoot == "" {
		opts.WorkRoot = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SubprocessRunner{opts: opts}
}

// Run implements Runner.
func (r *SubprocessRunner) Run(ctx context.Context, s Snippet) Result {
	start := time.Now()
	res := r.run(ctx, s)
	res.Language = s.Language
	res.Duration = time.Since(start)

	r.opts.Logger.Info("Snippet finished",
		"language", s.Language,
		"outcome", res.Outcome.String(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (r *SubprocessRunner) run(ctx context.Context, s Snippet) Result {
	tc, ok := r.opts.Toolchains[s.Language]
	if !ok {
		return Result{Outcome: OutcomeLaunchError, Err: fmt.Errorf("no toolchain for %s", s.Language)}
	}

	dir, err := makeScratchDir(r.opts.WorkRoot, s.Language)
	if err != nil {
		return Result{Outcome: OutcomeLaunchError, Err: err}
	}
	defer removeScratchDir(r.opts.Logger, dir)

	if tc.Prepare != nil {
		if err := tc.Prepare(dir, s.Code); err != nil {
			return Result{Outcome: OutcomeLaunchError, Err: err}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var args []string
	if tc.Args != nil {
		args = tc.Args(dir)
	}
	cmd := exec.CommandContext(runCtx, tc.Binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), tc.Env...)
	cmd.WaitDelay = defaultWaitDelay
	configureProcessGroup(cmd)

	stdout := newOutputBuffer(r.opts.CaptureLimit)
	stderr := newOutputBuffer(r.opts.CaptureLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	if stdout.Truncated() || stderr.Truncated() {
		r.opts.Logger.Warn("Snippet output truncated", "language", s.Language)
	}
	res.Outcome = outcomeOf(runCtx, err, s.Language, res.Stderr)
	return res
}

// outcomeOf maps a finished command onto an Outcome. The deadline is checked
// first because a killed process also reports an exit error.
func outcomeOf(runCtx context.Context, err error, lang Language, stderr string) Outcome {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || runCtx.Err() != nil {
			return OutcomeFailed
		}
		return OutcomeLaunchError
	}
	if !lang.Compiled() && stderr != "" {
		return OutcomeFailed
	}
	return OutcomeOK
}

func makeScratchDir(root string, lang Language) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", lang, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

func removeScratchDir(logger *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Error("Failed to remove scratch dir", "dir", dir, "error", err)
	}
}
