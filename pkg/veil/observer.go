package veil

import (
	"github.com/dhi-engine/dhi/pkg/orchestrator"
)

// Observer bundles gate and ledger behind the orchestrator's Recorder hook
// so every completed orchestration is gated and written exactly once.
type Observer struct {
	gate     Gate
	ledger   *Ledger
	baseline Fingerprint
	opts     FingerprintOptions
}

// NewObserver captures the startup baseline fingerprint.
func NewObserver(ledger *Ledger, opts FingerprintOptions) *Observer {
	return &Observer{
		ledger:   ledger,
		baseline: Generate(opts),
		opts:     opts,
	}
}

// Baseline returns the fingerprint captured at construction.
func (o *Observer) Baseline() Fingerprint {
	return o.baseline
}

// Record gates the orchestration against a fresh fingerprint and writes the
// ledger. Telemetry is always appended, behavioural memory only on a passing
// gate decision.
func (o *Observer) Record(result orchestrator.Result) {
	current := Generate(o.opts)
	decision := o.gate.Evaluate(result, current, o.baseline)
	o.ledger.Write(decision, result, current)
}
