package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// ContainerAPI is the slice of the Docker Engine API the executor needs.
// *client.Client satisfies it; tests inject fakes.
type ContainerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Executor runs candidate code in hardened containers. Safe for concurrent
// use; runs never share containers.
type Executor struct {
	api    ContainerAPI
	image  string
	logger *slog.Logger
}

// NewExecutor connects to the local Docker daemon.
func NewExecutor(image string) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}
	return NewExecutorWithAPI(cli, image), nil
}

// NewExecutorWithAPI builds an executor over an explicit container API.
func NewExecutorWithAPI(api ContainerAPI, image string) *Executor {
	if image == "" {
		image = DefaultImage
	}
	return &Executor{
		api:    api,
		image:  image,
		logger: slog.Default().With("component", "sandbox"),
	}
}

// Run writes code to a temp dir, executes it inside a hardened container and
// returns a fully-populated VerificationResult. All paths produce a result
// value; no error escapes to the caller.
func (e *Executor) Run(ctx context.Context, code, requestID string, attempt int, mode taxonomy.Mode) taxonomy.VerificationResult {
	start := time.Now()
	cfg := e.runtimeConfig(mode)

	// Only balanced is implemented; everything else fails closed before any
	// container work.
	if mode != taxonomy.ModeBalanced {
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Verification mode %q is not available in this runtime. Only 'balanced' is supported.", mode))
	}

	srcDir, err := os.MkdirTemp("", "dhi-src-")
	if err != nil {
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Failed to stage candidate source: %v", err))
	}
	defer func() { _ = os.RemoveAll(srcDir) }()

	// Write code to a file. Never interpolate user content into a command.
	if err := os.WriteFile(filepath.Join(srcDir, candidateFile), []byte(code), 0o644); err != nil {
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Failed to write candidate source: %v", err))
	}

	if _, err := e.api.Ping(ctx); err != nil {
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Container runtime unreachable: %v", err))
	}

	pids := PidsLimit
	created, err := e.api.ContainerCreate(ctx,
		&container.Config{
			Image: e.image,
			Cmd:   []string{"python", sourceMountPath + "/" + candidateFile},
		},
		&container.HostConfig{
			Binds:          []string{srcDir + ":" + sourceMountPath + ":ro"},
			NetworkMode:    "none",
			ReadonlyRootfs: true,
			Tmpfs: map[string]string{
				scratchPath: fmt.Sprintf("rw,noexec,nosuid,size=%d", ScratchSizeBytes),
			},
			Resources: container.Resources{
				Memory:    MemLimitBytes,
				NanoCPUs:  NanoCPUs,
				PidsLimit: &pids,
			},
		},
		nil, nil, "")
	if err != nil {
		if errdefs.IsNotFound(err) {
			// Image missing is a policy failure with a build hint, matching
			// the operator workflow: the image must exist before serving.
			elapsed := time.Since(start).Milliseconds()
			return taxonomy.VerificationResult{
				RequestID:     requestID,
				Attempt:       attempt,
				SchemaVersion: taxonomy.ResultSchemaVersion,
				Mode:          mode,
				Tier:          taxonomy.TierL0,
				Status:        taxonomy.StatusFail,
				FailureClass:  taxonomy.FailurePolicy,
				ExitCode:      -1,
				DurationMS:    elapsed,
				Stdout:        "",
				Stderr:        fmt.Sprintf("Sandbox image %q not found. Build it with: docker build -f Dockerfile.sandbox -t %s .", e.image, e.image),
				Artifacts:     []string{},
				SkippedChecks: []string{},
				RuntimeConfig: cfg,
			}
		}
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Container create failed: %v", err))
	}
	id := created.ID

	if err := e.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		e.remove(id)
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Container start failed: %v", err))
	}

	exitCode, timedOut, waitErr := e.wait(ctx, id)
	if waitErr != nil {
		e.remove(id)
		return e.synthetic(requestID, attempt, mode, cfg, start,
			taxonomy.StrictModeUnavailable,
			fmt.Sprintf("Container wait failed: %v", waitErr))
	}

	stdout, stderr, outputCapped := e.readLogs(id)
	e.remove(id)

	// Defensive: total request budget applies even if individual waits fit.
	if time.Since(start) > TotalBudget {
		timedOut = true
	}

	violation, failureClass := Classify(exitCode, stdout, stderr, timedOut, outputCapped)
	status := taxonomy.StatusFail
	if violation == "" && failureClass == "" {
		status = taxonomy.StatusPass
	}

	return taxonomy.VerificationResult{
		RequestID:     requestID,
		Attempt:       attempt,
		SchemaVersion: taxonomy.ResultSchemaVersion,
		Mode:          mode,
		Tier:          taxonomy.TierL0,
		Status:        status,
		FailureClass:  failureClass,
		TerminalEvent: violation,
		ExitCode:      exitCode,
		DurationMS:    time.Since(start).Milliseconds(),
		Stdout:        stdout,
		Stderr:        stderr,
		Artifacts:     []string{},
		SkippedChecks: []string{},
		RuntimeConfig: cfg,
	}
}

// wait blocks until the container stops, the per-run timeout fires, the
// request budget runs out, or the caller cancels. Timeout and cancellation
// both force-kill the container and report timedOut.
func (e *Executor) wait(ctx context.Context, id string) (exitCode int, timedOut bool, err error) {
	waitTimeout := RunTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < waitTimeout {
			waitTimeout = remaining
		}
	}

	waitCh, errCh := e.api.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()

	select {
	case res := <-waitCh:
		return int(res.StatusCode), false, nil
	case werr := <-errCh:
		if ctx.Err() != nil {
			e.kill(id)
			return -1, true, nil
		}
		return -1, false, werr
	case <-timer.C:
		e.kill(id)
		return -1, true, nil
	}
}

// readLogs captures both output streams, capped per stream. The second cap
// check is on the raw stream size so oversized output is both truncated and
// reported.
func (e *Executor) readLogs(id string) (stdout, stderr string, capped bool) {
	// Logs are read on a fresh context: the caller's may already be
	// cancelled and the evidence still has to make it into the result.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rc, err := e.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		e.logger.Warn("log capture failed", "container_id", id, "error", err)
		return "", "", false
	}
	defer func() { _ = rc.Close() }()

	outBuf := newCappedWriter(LogCapBytes)
	errBuf := newCappedWriter(LogCapBytes)
	if _, err := stdcopy.StdCopy(outBuf, errBuf, rc); err != nil {
		e.logger.Warn("log demux failed", "container_id", id, "error", err)
	}
	return outBuf.String(), errBuf.String(), outBuf.Capped() || errBuf.Capped()
}

func (e *Executor) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.api.ContainerKill(ctx, id, "KILL"); err != nil {
		e.logger.Warn("container kill failed", "container_id", id, "error", err)
	}
}

// remove force-removes the container on every exit path, swallowing errors.
func (e *Executor) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

func (e *Executor) synthetic(requestID string, attempt int, mode taxonomy.Mode,
	cfg map[string]any, start time.Time, event taxonomy.ViolationEvent, stderr string) taxonomy.VerificationResult {
	return taxonomy.VerificationResult{
		RequestID:     requestID,
		Attempt:       attempt,
		SchemaVersion: taxonomy.ResultSchemaVersion,
		Mode:          mode,
		Tier:          taxonomy.TierL0,
		Status:        taxonomy.StatusFail,
		FailureClass:  taxonomy.FailurePolicy,
		TerminalEvent: event,
		ExitCode:      -1,
		DurationMS:    time.Since(start).Milliseconds(),
		Stdout:        "",
		Stderr:        stderr,
		Artifacts:     []string{},
		SkippedChecks: []string{},
		RuntimeConfig: cfg,
	}
}

func (e *Executor) runtimeConfig(mode taxonomy.Mode) map[string]any {
	return map[string]any{
		"mode":           string(mode),
		"image":          e.image,
		"command":        "python " + sourceMountPath + "/" + candidateFile,
		"timeout_s":      int(RunTimeout.Seconds()),
		"total_budget_s": int(TotalBudget.Seconds()),
		"mem_limit":      MemLimitBytes,
		"cpu_nano":       NanoCPUs,
		"pids_limit":     PidsLimit,
		"log_cap_bytes":  LogCapBytes,
		"tmpfs_bytes":    ScratchSizeBytes,
		"network":        "none",
		"source_mount":   "ro",
		"rootfs":         "ro",
	}
}
