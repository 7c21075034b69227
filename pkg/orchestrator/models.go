// Package orchestrator implements the bounded circuit-breaker loop around
// generation and verification: at most three attempts, halting immediately
// on success, on non-retryable failure or on a terminal policy event.
package orchestrator

import (
	"time"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// MaxAttempts bounds the retry loop per request.
const MaxAttempts = 3

// AttemptRecord is an immutable snapshot of a single generation and
// verification attempt.
type AttemptRecord struct {
	Attempt            int                          `json:"attempt"`
	ExtractionSuccess  bool                         `json:"extraction_success"`
	ExtractionError    string                       `json:"extraction_error,omitempty"`
	VerificationResult *taxonomy.VerificationResult `json:"verification_result,omitempty"`
	Timestamp          time.Time                    `json:"timestamp"`
}

// Result is the final aggregated outcome of the complete loop.
type Result struct {
	RequestID string `json:"request_id"`

	// Attempt tracking. RetryCount is always AttemptCount-1.
	AttemptCount int `json:"attempt_count"`
	RetryCount   int `json:"retry_count"`

	// Final outcome.
	FinalStatus   string                  `json:"final_status"`
	TerminalEvent taxonomy.ViolationEvent `json:"terminal_event,omitempty"`

	// Full history in strictly increasing attempt order.
	Attempts []AttemptRecord `json:"attempts"`
}
