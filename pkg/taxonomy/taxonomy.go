// Package taxonomy owns the closed enums and canonical records shared by the
// sandbox, orchestrator, attestation and VEIL layers. Keeping them here breaks
// the import cycle between the attestation tier mapper and the sandbox types.
package taxonomy

import "fmt"

// Mode is the runtime isolation mode for the sandbox.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeStrict   Mode = "strict"
)

// ParseMode validates a mode string. Empty input defaults to balanced.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFast, ModeBalanced, ModeStrict:
		return Mode(s), nil
	case "":
		return ModeBalanced, nil
	}
	return "", fmt.Errorf("taxonomy: unknown mode %q", s)
}

// Tier is the strength of evidence behind a verified claim.
// AI_TESTS_ONLY means human review is required before trusting the result.
type Tier string

const (
	TierL0          Tier = "L0"            // syntax / lint / type checks only
	TierL1          Tier = "L1"            // pre-existing user tests passed
	TierL2          Tier = "L2"            // integration / e2e passed
	TierAITestsOnly Tier = "AI_TESTS_ONLY" // AI-generated tests, human review required
)

// FailureClass is the coarse retry-policy bucket for a failed run.
type FailureClass string

const (
	FailureSyntax        FailureClass = "syntax"        // retryable
	FailurePolicy        FailureClass = "policy"        // non-retryable: security policy violation
	FailureTimeout       FailureClass = "timeout"       // non-retryable: wall-clock or budget exceeded
	FailureFlake         FailureClass = "flake"         // non-retryable in v1
	FailureDeterministic FailureClass = "deterministic" // retryable: consistent logical failure
)

// ViolationEvent names a terminal, non-retryable policy breach.
type ViolationEvent string

const (
	NetworkAccessViolation   ViolationEvent = "NetworkAccessViolation"
	FilesystemWriteViolation ViolationEvent = "FilesystemWriteViolation"
	TimeoutViolation         ViolationEvent = "TimeoutViolation"
	ProcessLimitViolation    ViolationEvent = "ProcessLimitViolation"
	MemoryLimitViolation     ViolationEvent = "MemoryLimitViolation"
	OutputLimitViolation     ViolationEvent = "OutputLimitViolation"
	SyscallViolation         ViolationEvent = "SyscallViolation"
	StrictModeUnavailable    ViolationEvent = "StrictModeUnavailable"
	StrictModeRequired       ViolationEvent = "StrictModeRequired"
	MaxRetriesExceeded       ViolationEvent = "MaxRetriesExceeded"
)

// Status values for a verification outcome.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)
