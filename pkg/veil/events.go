package veil

import (
	"time"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// EventType discriminates ledger event kinds.
type EventType string

const (
	EventTelemetry  EventType = "telemetry"
	EventBehavioral EventType = "behavioral"
)

// GateDecision is the result of evaluating a run through the determinism
// gate. Reasons are a closed vocabulary: fingerprint_mismatch, no_attempts,
// extraction_failed, noise:<class>, deterministic_fail_<class>,
// deterministic_pass, reproducible_pass.
type GateDecision struct {
	Passed       bool   `json:"passed"`
	Reason       string `json:"reason"`
	Reproducible bool   `json:"reproducible"`
}

// EventCore carries the fields shared by all ledger events.
type EventCore struct {
	EventType    EventType             `json:"event_type"`
	RequestID    string                `json:"request_id"`
	Timestamp    time.Time             `json:"timestamp"`
	Outcome      string                `json:"outcome"`
	FailureClass taxonomy.FailureClass `json:"failure_class,omitempty"`
	AttemptCount int                   `json:"attempt_count"`
	DurationMS   int64                 `json:"duration_ms"`
}

// TelemetryEvent is the lightweight record always written for a completed
// orchestration, noisy or not.
type TelemetryEvent struct {
	EventCore
}

// BehavioralEvent is the rich record written only when the run passed the
// determinism gate. These events form the ledger's behavioural memory; no
// component in this module condenses them any further.
type BehavioralEvent struct {
	EventCore
	Fingerprint Fingerprint `json:"fingerprint"`
}
