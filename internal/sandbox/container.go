package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/codemate/internal/config"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	containerWorkDir = "/work"
	containerPrefix  = "codemate-run-"
	removeTimeout    = 10 * time.Second

	// Resource limits.
	memoryLimitBytes = 256 * 1024 * 1024 // 256MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 128
)

// ContainerRunner runs each snippet in a throwaway container with no
// network, bounded memory, CPU and process count. The container is force
// removed on every exit path.
type ContainerRunner struct {
	cli        *client.Client
	runtime    string // "" = default (runc), "runsc" = gVisor
	timeout    time.Duration
	workRoot   string
	toolchains map[Language]Toolchain
	logger     *slog.Logger
}

// NewContainerRunner connects to the Docker daemon from the environment.
func NewContainerRunner(cfg config.SandboxConfig, logger *slog.Logger) (*ContainerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	runtime := cfg.Runtime
	if runtime == "" {
		logger.Info("Docker client initialized", "runtime", "default")
	} else {
		logger.Info("Docker client initialized", "runtime", runtime)
	}
	return &ContainerRunner{
		cli:        cli,
		runtime:    runtime,
		timeout:    cfg.Timeout,
		workRoot:   cfg.WorkRoot,
		toolchains: DefaultToolchains(cfg),
		logger:     logger,
	}, nil
}

// Close releases the Docker client.
func (r *ContainerRunner) Close() error {
	return r.cli.Close()
}

// Run implements Runner.
func (r *ContainerRunner) Run(ctx context.Context, s Snippet) Result {
	start := time.Now()
	res := r.run(ctx, s)
	res.Language = s.Language
	res.Duration = time.Since(start)
	r.logger.Info("Container snippet finished",
		"language", s.Language,
		"outcome", res.Outcome.String(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (r *ContainerRunner) run(ctx context.Context, s Snippet) Result {
	tc, ok := r.toolchains[s.Language]
	if !ok {
		return Result{Outcome: OutcomeLaunchError, Err: fmt.Errorf("no toolchain for %s", s.Language)}
	}

	dir, err := makeScratchDir(r.workRoot, s.Language)
	if err != nil {
		return Result{Outcome: OutcomeLaunchError, Err: err}
	}
	defer removeScratchDir(r.logger, dir)

	if err := tc.Prepare(dir, s.Code); err != nil {
		return Result{Outcome: OutcomeLaunchError, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := r.create(runCtx, tc, dir)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Result{Outcome: OutcomeTimeout, Err: err}
		}
		return Result{Outcome: OutcomeLaunchError, Err: err}
	}
	defer r.remove(ctx, id)

	if err := r.cli.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return Result{Outcome: OutcomeLaunchError, Err: fmt.Errorf("start container %s: %w", id, err)}
	}

	exitCode, err := r.wait(runCtx, id)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.kill(ctx, id)
		return Result{Outcome: OutcomeTimeout, Err: runCtx.Err()}
	}
	if err != nil {
		return Result{Outcome: OutcomeLaunchError, Err: err}
	}

	stdout := newOutputBuffer(defaultCaptureLimit)
	stderr := newOutputBuffer(defaultCaptureLimit)
	if err := r.logs(ctx, id, stdout, stderr); err != nil {
		r.logger.Warn("Failed to read container logs", "container_id", id, "error", err)
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	switch {
	case exitCode != 0:
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("exit status %d", exitCode)
	case !s.Language.Compiled() && res.Stderr != "":
		res.Outcome = OutcomeFailed
	default:
		res.Outcome = OutcomeOK
	}
	return res
}

// containerSpec builds the create request for a snippet mounted from dir.
func (r *ContainerRunner) containerSpec(tc Toolchain, dir string) (*container.Config, *container.HostConfig) {
	cmd := append([]string{filepath.Base(tc.Binary)}, tc.Args(containerWorkDir)...)
	cfg := &container.Config{
		Image:           tc.Image,
		Cmd:             cmd,
		WorkingDir:      containerWorkDir,
		Env:             tc.Env,
		NetworkDisabled: true,
		Labels:          map[string]string{"codemate.language": string(tc.Language)},
	}
	hostCfg := &container.HostConfig{
		Runtime:     r.runtime,
		NetworkMode: container.NetworkMode("none"),
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: dir,
			Target: containerWorkDir,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}
	return cfg, hostCfg
}

func (r *ContainerRunner) create(ctx context.Context, tc Toolchain, dir string) (string, error) {
	cfg, hostCfg := r.containerSpec(tc, dir)
	name := containerPrefix + uuid.NewString()

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil && errdefs.IsNotFound(err) {
		r.logger.Info("Pulling sandbox image", "image", tc.Image)
		if pullErr := r.pull(ctx, tc.Image); pullErr != nil {
			return "", fmt.Errorf("pull image %s: %w", tc.Image, pullErr)
		}
		resp, err = r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	}
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return resp.ID, nil
}

func (r *ContainerRunner) pull(ctx context.Context, ref string) error {
	rc, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

func (r *ContainerRunner) wait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := r.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("wait container %s: %w", id, err)
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return st.StatusCode, fmt.Errorf("wait container %s: %s", id, st.Error.Message)
		}
		return st.StatusCode, nil
	}
}

func (r *ContainerRunner) logs(ctx context.Context, id string, stdout, stderr io.Writer) error {
	rc, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("container logs %s: %w", id, err)
	}
	defer rc.Close()
	if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil {
		return fmt.Errorf("demux logs %s: %w", id, err)
	}
	return nil
}

func (r *ContainerRunner) kill(ctx context.Context, id string) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	if err := r.cli.ContainerKill(killCtx, id, "SIGKILL"); err != nil && !errdefs.IsNotFound(err) {
		r.logger.Debug("Container kill returned error", "container_id", id, "error", err)
	}
}

// remove force-removes the container. It runs on a context detached from the
// request so a cancelled caller still gets cleanup.
func (r *ContainerRunner) remove(ctx context.Context, id string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()

	err := r.cli.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true})
	switch {
	case err == nil:
		r.logger.Debug("Container removed", "container_id", id)
	case errdefs.IsNotFound(err):
		r.logger.Debug("Container already removed", "container_id", id)
	case strings.Contains(err.Error(), "is already in progress"):
		r.logger.Debug("Container removal already in progress", "container_id", id)
	default:
		r.logger.Error("Failed to remove container", "container_id", id, "error", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
