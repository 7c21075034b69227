package veil

import (
	"sync"
	"time"

	"github.com/dhi-engine/dhi/pkg/orchestrator"
	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// Ledger is the in-process event store. Telemetry is written for every run;
// behavioural events only for runs that pass the determinism gate. The
// ledger owns its lists exclusively; reads return defensive copies.
type Ledger struct {
	mu         sync.RWMutex
	telemetry  []TelemetryEvent
	behavioral []BehavioralEvent
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Write records the orchestration outcome: always telemetry, and behavioural
// memory when decision.Passed. For a single orchestration the telemetry
// write is ordered before the behavioural one.
func (l *Ledger) Write(decision GateDecision, result orchestrator.Result, fp Fingerprint) {
	now := time.Now().UTC()

	var failureClass taxonomy.FailureClass
	var durationMS int64
	if len(result.Attempts) > 0 {
		// Total wall-clock spent in the sandbox across attempts.
		for _, attempt := range result.Attempts {
			if attempt.VerificationResult != nil {
				durationMS += attempt.VerificationResult.DurationMS
			}
		}
		if last := result.Attempts[len(result.Attempts)-1].VerificationResult; last != nil {
			failureClass = last.FailureClass
		}
	}

	core := EventCore{
		RequestID:    result.RequestID,
		Timestamp:    now,
		Outcome:      result.FinalStatus,
		FailureClass: failureClass,
		AttemptCount: result.AttemptCount,
		DurationMS:   durationMS,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	telemetryCore := core
	telemetryCore.EventType = EventTelemetry
	l.telemetry = append(l.telemetry, TelemetryEvent{EventCore: telemetryCore})

	if decision.Passed {
		behavioralCore := core
		behavioralCore.EventType = EventBehavioral
		l.behavioral = append(l.behavioral, BehavioralEvent{
			EventCore:   behavioralCore,
			Fingerprint: fp,
		})
	}
}

// ReadTelemetry returns a copy of all recorded telemetry events.
func (l *Ledger) ReadTelemetry() []TelemetryEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]TelemetryEvent(nil), l.telemetry...)
}

// ReadBehavioral returns a copy of all recorded behavioural events.
func (l *Ledger) ReadBehavioral() []BehavioralEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]BehavioralEvent(nil), l.behavioral...)
}
