package veil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dhi-engine/dhi/pkg/orchestrator"
	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

func orchestration(finalStatus string, retryCount int, lastClass taxonomy.FailureClass, withResult bool) orchestrator.Result {
	var verification *taxonomy.VerificationResult
	if withResult {
		status := finalStatus
		verification = &taxonomy.VerificationResult{
			RequestID:     "req-veil",
			Attempt:       retryCount + 1,
			SchemaVersion: taxonomy.ResultSchemaVersion,
			Mode:          taxonomy.ModeBalanced,
			Tier:          taxonomy.TierL0,
			Status:        status,
			FailureClass:  lastClass,
		}
	}
	return orchestrator.Result{
		RequestID:    "req-veil",
		AttemptCount: retryCount + 1,
		RetryCount:   retryCount,
		FinalStatus:  finalStatus,
		Attempts: []orchestrator.AttemptRecord{
			{Attempt: retryCount + 1, ExtractionSuccess: withResult, VerificationResult: verification},
		},
	}
}

func TestGateFingerprintMismatch(t *testing.T) {
	baseline := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})
	current := Generate(FingerprintOptions{EnvVarNames: []string{"A", "B"}})

	decision := Gate{}.Evaluate(orchestration(taxonomy.StatusPass, 0, "", true), current, baseline)

	assert.False(t, decision.Passed)
	assert.Equal(t, "fingerprint_mismatch", decision.Reason)
	assert.False(t, decision.Reproducible)
}

func TestGateNoAttempts(t *testing.T) {
	fp := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})
	result := orchestrator.Result{RequestID: "req-veil", FinalStatus: taxonomy.StatusFail}

	decision := Gate{}.Evaluate(result, fp, fp)

	assert.False(t, decision.Passed)
	assert.Equal(t, "no_attempts", decision.Reason)
}

func TestGateExtractionFailed(t *testing.T) {
	fp := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})

	decision := Gate{}.Evaluate(orchestration(taxonomy.StatusFail, 0, "", false), fp, fp)

	assert.False(t, decision.Passed)
	assert.Equal(t, "extraction_failed", decision.Reason)
}

func TestGateNoiseClasses(t *testing.T) {
	fp := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})

	for _, class := range []taxonomy.FailureClass{taxonomy.FailureFlake, taxonomy.FailureTimeout, taxonomy.FailurePolicy} {
		decision := Gate{}.Evaluate(orchestration(taxonomy.StatusFail, 0, class, true), fp, fp)
		assert.False(t, decision.Passed)
		assert.Equal(t, "noise:"+string(class), decision.Reason)
	}
}

func TestGateDeterministicFailIsSignal(t *testing.T) {
	fp := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})

	for _, class := range []taxonomy.FailureClass{taxonomy.FailureSyntax, taxonomy.FailureDeterministic} {
		decision := Gate{}.Evaluate(orchestration(taxonomy.StatusFail, 2, class, true), fp, fp)
		assert.True(t, decision.Passed, "class %s is useful negative signal", class)
		assert.Equal(t, "deterministic_fail_"+string(class), decision.Reason)
		assert.False(t, decision.Reproducible)
	}
}

func TestGateFirstTryPass(t *testing.T) {
	fp := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})

	decision := Gate{}.Evaluate(orchestration(taxonomy.StatusPass, 0, "", true), fp, fp)

	assert.True(t, decision.Passed)
	assert.Equal(t, "deterministic_pass", decision.Reason)
	assert.False(t, decision.Reproducible)
}

func TestGatePassAfterRetries(t *testing.T) {
	fp := Generate(FingerprintOptions{EnvVarNames: []string{"A"}})

	decision := Gate{}.Evaluate(orchestration(taxonomy.StatusPass, 1, "", true), fp, fp)

	assert.True(t, decision.Passed)
	assert.Equal(t, "reproducible_pass", decision.Reason)
	assert.True(t, decision.Reproducible)
}
