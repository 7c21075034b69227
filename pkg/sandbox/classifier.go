package sandbox

import (
	"strings"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// Signal families matched case-insensitively against combined stderr+stdout.
// The families and their priority order are part of the verification
// contract: re-ordering changes observable behaviour.
var (
	networkSignals = []string{
		"network is unreachable",
		"name or service not known",
		"connection refused",
		"errno 101",   // ENETUNREACH
		"errno 111",   // ECONNREFUSED
		"[errno 110]", // ETIMEDOUT
		"socket.gaierror",
	}

	filesystemSignals = []string{
		"read-only file system",
		"[errno 30]",
		"erofs",
	}

	processSignals = []string{
		"resource temporarily unavailable",
		"can't start new thread",
		"cannot allocate memory",
		"fork: retry",
		"pids limit",
	}

	syscallSignals = []string{
		"seccomp",
		"operation not permitted",
		"permission denied",
		"bad system call",
	}
)

// Classify maps execution signals to a (ViolationEvent, FailureClass) pair.
// Deterministic: pattern matching on known signals only, evaluated in strict
// priority order with first match winning. A (zero, zero) return is a clean
// pass.
func Classify(exitCode int, stdout, stderr string, timedOut, outputCapped bool) (taxonomy.ViolationEvent, taxonomy.FailureClass) {
	// 1. Timeout — checked first, SIGKILL at the limit.
	if timedOut {
		return taxonomy.TimeoutViolation, taxonomy.FailureTimeout
	}

	// 2. Output cap breach.
	if outputCapped {
		return taxonomy.OutputLimitViolation, taxonomy.FailurePolicy
	}

	// 3. Clean pass.
	if exitCode == 0 {
		return "", ""
	}

	stderrLower := strings.ToLower(stderr)
	combined := stderrLower + strings.ToLower(stdout)

	// 4. Network access (network_mode=none surfaces socket errors).
	if containsAny(combined, networkSignals) {
		return taxonomy.NetworkAccessViolation, taxonomy.FailurePolicy
	}

	// 5. Filesystem write against the read-only mounts.
	if containsAny(combined, filesystemSignals) {
		return taxonomy.FilesystemWriteViolation, taxonomy.FailurePolicy
	}

	// 6. Process/thread cap.
	if containsAny(combined, processSignals) {
		return taxonomy.ProcessLimitViolation, taxonomy.FailurePolicy
	}

	// 7. Seccomp / blocked syscall.
	if containsAny(combined, syscallSignals) {
		return taxonomy.SyscallViolation, taxonomy.FailurePolicy
	}

	// 8. OOM kill: exit code 137 = SIGKILL.
	if exitCode == 137 && (strings.TrimSpace(stderr) == "" ||
		strings.Contains(combined, "killed") ||
		strings.Contains(combined, "out of memory")) {
		return taxonomy.MemoryLimitViolation, taxonomy.FailurePolicy
	}

	// 9. Python syntax failures are retryable.
	if strings.Contains(stderrLower, "syntaxerror") || strings.Contains(stderrLower, "indentationerror") {
		return "", taxonomy.FailureSyntax
	}

	// 10. Any other non-zero exit: consistent logical failure.
	return "", taxonomy.FailureDeterministic
}

func containsAny(s string, signals []string) bool {
	for _, sig := range signals {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
