// Package attestation produces the trust contract: the manifest that backs
// every "verified" label, its tier mapping, the completeness guard, and the
// signing envelope.
package attestation

import (
	"fmt"
	"time"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// SchemaVersion increments when any manifest field is added or renamed.
const SchemaVersion = "1.0"

// ManifestIncompleteError is raised when a caller tries to emit a
// "verified" response without a complete manifest. It is the single
// enforcement point for that rule.
type ManifestIncompleteError struct {
	Field string
}

func (e *ManifestIncompleteError) Error() string {
	if e.Field == "" {
		return "cannot label response as 'verified': attestation manifest is missing"
	}
	return fmt.Sprintf("cannot label response as 'verified': manifest field %q is empty", e.Field)
}

// Manifest is the full trust contract proof for one completed request
// attempt. A downstream consumer that receives a response without a
// manifest MUST treat the result as unverified.
type Manifest struct {
	// Identity
	RequestID     string    `json:"request_id"`
	Attempt       int       `json:"attempt"`
	SchemaVersion string    `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`

	// Verification tier. HumanReviewRequired is true iff the tier is
	// AI_TESTS_ONLY; the response must not be labelled verified without
	// human sign-off.
	Tier                Tier `json:"tier"`
	HumanReviewRequired bool `json:"human_review_required"`

	// Execution evidence
	Mode       taxonomy.Mode `json:"mode"`
	ExitCode   int           `json:"exit_code"`
	DurationMS int64         `json:"duration_ms"`

	// Ordered commands executed inside the sandbox.
	CommandsRun []string `json:"commands_run"`

	// Outcome
	Status        string                  `json:"status"`
	FailureClass  taxonomy.FailureClass   `json:"failure_class,omitempty"`
	TerminalEvent taxonomy.ViolationEvent `json:"terminal_event,omitempty"`

	// Retry context: retries consumed before this result (0-2).
	RetriesUsed int `json:"retries_used"`

	// Checks intentionally omitted and artifacts produced.
	SkippedChecks []string `json:"skipped_checks"`
	ArtifactRefs  []string `json:"artifact_refs"`

	// Snapshot of the runtime policy applied.
	RuntimeConfig map[string]any `json:"runtime_config"`
}

// Tier aliases the shared taxonomy tier for manifest consumers.
type Tier = taxonomy.Tier

// Build constructs a complete manifest from a verification result.
// commandsRun may be nil, in which case the command list is inferred from
// the result's runtime config.
func Build(result *taxonomy.VerificationResult, retriesUsed int, commandsRun []string) (*Manifest, error) {
	if result == nil {
		return nil, fmt.Errorf("attestation: cannot build manifest from nil result")
	}
	if retriesUsed < 0 || retriesUsed > 2 {
		return nil, fmt.Errorf("attestation: retries_used %d out of range [0,2]", retriesUsed)
	}

	tier := MapTier(result)
	if commandsRun == nil {
		commandsRun = inferCommands(result)
	}

	return &Manifest{
		RequestID:           result.RequestID,
		Attempt:             result.Attempt,
		SchemaVersion:       SchemaVersion,
		CreatedAt:           time.Now().UTC(),
		Tier:                tier,
		HumanReviewRequired: tier == taxonomy.TierAITestsOnly,
		Mode:                result.Mode,
		ExitCode:            result.ExitCode,
		DurationMS:          result.DurationMS,
		CommandsRun:         commandsRun,
		Status:              result.Status,
		FailureClass:        result.FailureClass,
		TerminalEvent:       result.TerminalEvent,
		RetriesUsed:         retriesUsed,
		SkippedChecks:       append([]string{}, result.SkippedChecks...),
		ArtifactRefs:        append([]string{}, result.Artifacts...),
		RuntimeConfig:       copyConfig(result.RuntimeConfig),
	}, nil
}

// AssertComplete fails with ManifestIncompleteError if the manifest is
// missing or if request_id or status is empty. Call it before attaching a
// "verified" label to any response.
func AssertComplete(m *Manifest) error {
	if m == nil {
		return &ManifestIncompleteError{}
	}
	if m.RequestID == "" {
		return &ManifestIncompleteError{Field: "request_id"}
	}
	if m.Status == "" {
		return &ManifestIncompleteError{Field: "status"}
	}
	return nil
}

// inferCommands reconstructs a best-effort command list from runtime config.
func inferCommands(result *taxonomy.VerificationResult) []string {
	if cmd, ok := result.RuntimeConfig["command"]; ok {
		return []string{fmt.Sprint(cmd)}
	}
	return []string{}
}

func copyConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
