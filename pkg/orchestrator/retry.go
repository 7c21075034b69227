package orchestrator

import (
	"fmt"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// retryableFailureClasses allow another attempt.
var retryableFailureClasses = map[taxonomy.FailureClass]bool{
	taxonomy.FailureSyntax:        true,
	taxonomy.FailureDeterministic: true,
}

// unretryableViolationEvents always trigger an immediate halt.
var unretryableViolationEvents = map[taxonomy.ViolationEvent]bool{
	taxonomy.NetworkAccessViolation:   true,
	taxonomy.StrictModeUnavailable:    true,
	taxonomy.StrictModeRequired:       true,
	taxonomy.FilesystemWriteViolation: true,
	taxonomy.SyscallViolation:         true,
	taxonomy.ProcessLimitViolation:    true,
	taxonomy.MemoryLimitViolation:     true,
	taxonomy.OutputLimitViolation:     true,
}

// RetryDecision is a retry eligibility verdict with its reason.
type RetryDecision struct {
	ShouldRetry bool
	Reason      string
}

// DecideRetry determines whether a verification result warrants another
// attempt. Rules evaluated in priority order:
//
//  1. passed results never retry
//  2. attempt ceiling reached: halt
//  3. unretryable terminal violation events: halt
//  4. missing failure class on a fail: halt (fail-closed)
//  5. retryable classes (syntax, deterministic): retry
//  6. everything else (policy, timeout, flake): halt
func DecideRetry(result *taxonomy.VerificationResult, currentAttempt int) RetryDecision {
	if result.Status == taxonomy.StatusPass {
		return RetryDecision{Reason: "Verification passed. No retry needed."}
	}

	if currentAttempt >= MaxAttempts {
		return RetryDecision{
			Reason: fmt.Sprintf("Max attempts reached (%d). Emitting MaxRetriesExceeded.", MaxAttempts),
		}
	}

	if result.TerminalEvent != "" && unretryableViolationEvents[result.TerminalEvent] {
		return RetryDecision{
			Reason: fmt.Sprintf("Terminal violation event %q is non-retryable.", result.TerminalEvent),
		}
	}

	if result.FailureClass == "" {
		return RetryDecision{
			Reason: "No failure_class set on failed result. Halting (fail-closed).",
		}
	}

	if retryableFailureClasses[result.FailureClass] {
		return RetryDecision{
			ShouldRetry: true,
			Reason: fmt.Sprintf("Failure class %q is retryable. Scheduling attempt %d.",
				result.FailureClass, currentAttempt+1),
		}
	}

	return RetryDecision{
		Reason: fmt.Sprintf("Failure class %q is non-retryable. Halting.", result.FailureClass),
	}
}
