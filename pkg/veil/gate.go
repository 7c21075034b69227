package veil

import (
	"github.com/dhi-engine/dhi/pkg/orchestrator"
	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// Gate decides whether an orchestration carries actionable deterministic
// signal that behavioural memory should learn from.
type Gate struct{}

// Evaluate checks fingerprint parity, filters out noise classes (timeout,
// flake, policy) and admits deterministic passes and deterministic failures.
func (Gate) Evaluate(result orchestrator.Result, current, baseline Fingerprint) GateDecision {
	if !current.Equal(baseline) {
		return GateDecision{Reason: "fingerprint_mismatch"}
	}

	if len(result.Attempts) == 0 {
		// Should not happen for a valid orchestration, but safe fallback.
		return GateDecision{Reason: "no_attempts"}
	}

	lastVerification := result.Attempts[len(result.Attempts)-1].VerificationResult
	if lastVerification == nil {
		return GateDecision{Reason: "extraction_failed"}
	}

	if result.FinalStatus == taxonomy.StatusFail {
		switch class := lastVerification.FailureClass; class {
		case taxonomy.FailureFlake, taxonomy.FailureTimeout, taxonomy.FailurePolicy:
			return GateDecision{Reason: "noise:" + string(class)}
		}

		// Syntax and deterministic failures are useful negative signal.
		class := "none"
		if lastVerification.FailureClass != "" {
			class = string(lastVerification.FailureClass)
		}
		return GateDecision{Passed: true, Reason: "deterministic_fail_" + class}
	}

	// Outcome is pass. A pass that needed retries proved itself across
	// attempts; a first-try pass is merely deterministic.
	reproducible := result.RetryCount > 0
	reason := "deterministic_pass"
	if reproducible {
		reason = "reproducible_pass"
	}
	return GateDecision{Passed: true, Reason: reason, Reproducible: reproducible}
}
