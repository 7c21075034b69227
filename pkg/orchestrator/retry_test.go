package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

func failedResult(class taxonomy.FailureClass, event taxonomy.ViolationEvent) *taxonomy.VerificationResult {
	return &taxonomy.VerificationResult{
		RequestID:     "req-retry",
		Attempt:       1,
		SchemaVersion: taxonomy.ResultSchemaVersion,
		Mode:          taxonomy.ModeBalanced,
		Tier:          taxonomy.TierL0,
		Status:        taxonomy.StatusFail,
		FailureClass:  class,
		TerminalEvent: event,
		ExitCode:      1,
	}
}

func TestPassNeverRetries(t *testing.T) {
	result := failedResult("", "")
	result.Status = taxonomy.StatusPass
	result.ExitCode = 0

	decision := DecideRetry(result, 1)
	assert.False(t, decision.ShouldRetry)
}

func TestMaxAttemptsHalts(t *testing.T) {
	decision := DecideRetry(failedResult(taxonomy.FailureSyntax, ""), MaxAttempts)
	assert.False(t, decision.ShouldRetry)
	assert.Contains(t, decision.Reason, "Max attempts reached")
}

func TestTerminalEventsHalt(t *testing.T) {
	for event := range unretryableViolationEvents {
		decision := DecideRetry(failedResult(taxonomy.FailurePolicy, event), 1)
		assert.False(t, decision.ShouldRetry, "event %s must halt", event)
	}
}

func TestRetryableClasses(t *testing.T) {
	for _, class := range []taxonomy.FailureClass{taxonomy.FailureSyntax, taxonomy.FailureDeterministic} {
		decision := DecideRetry(failedResult(class, ""), 1)
		assert.True(t, decision.ShouldRetry, "class %s must retry", class)
	}
}

func TestNonRetryableClasses(t *testing.T) {
	for _, class := range []taxonomy.FailureClass{taxonomy.FailurePolicy, taxonomy.FailureTimeout, taxonomy.FailureFlake} {
		decision := DecideRetry(failedResult(class, ""), 1)
		assert.False(t, decision.ShouldRetry, "class %s must halt", class)
	}
}

func TestMissingClassFailsClosed(t *testing.T) {
	decision := DecideRetry(failedResult("", ""), 1)
	assert.False(t, decision.ShouldRetry)
	assert.Contains(t, decision.Reason, "fail-closed")
}

func TestTimeoutEventOnSecondAttemptStillHalts(t *testing.T) {
	// TimeoutViolation is not in the unretryable event set, but its timeout
	// class halts anyway.
	decision := DecideRetry(failedResult(taxonomy.FailureTimeout, taxonomy.TimeoutViolation), 2)
	assert.False(t, decision.ShouldRetry)
}
