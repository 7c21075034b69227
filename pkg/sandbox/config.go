// Package sandbox runs candidate code inside a hardened Docker container and
// classifies the outcome into the canonical violation taxonomy.
//
// Security rules applied on every run:
//   - source is always written to a file, never shell-interpolated
//   - network is disabled (network_mode=none) with no override path
//   - source directory and root filesystem are mounted read-only
//   - the scratch tmpfs is separate, size-capped, noexec and nosuid
//   - all limits are hard-coded balanced-mode policy defaults
package sandbox

import "time"

// Balanced mode hard limits. Balanced is the only supported mode in v1;
// fast and strict fail closed with StrictModeUnavailable.
const (
	// RunTimeout bounds a single container wait.
	RunTimeout = 45 * time.Second

	// TotalBudget bounds all sandbox work for one request.
	TotalBudget = 180 * time.Second

	// MemLimitBytes is the container memory ceiling (1 GiB).
	MemLimitBytes int64 = 1 << 30

	// NanoCPUs is 2 vCPU equivalents.
	NanoCPUs int64 = 2_000_000_000

	// PidsLimit caps processes/threads in the container.
	PidsLimit int64 = 256

	// LogCapBytes caps each captured output stream (10 MiB).
	LogCapBytes int64 = 10 * 1024 * 1024

	// ScratchSizeBytes caps the writable tmpfs (512 MiB).
	ScratchSizeBytes int64 = 512 * 1024 * 1024
)

// DefaultImage is the sandbox image tag. The image must be built and
// available locally before serving verification requests.
const DefaultImage = "dhi-sandbox:latest"

// Container mount points.
const (
	sourceMountPath = "/source"
	scratchPath     = "/tmp/dhi-scratch"
	candidateFile   = "candidate.py"
)
