package attestation

import (
	"strings"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// MapTier derives the highest tier of evidence achieved for a verification
// result. The mapping is deterministic over fields the sandbox already
// produced, evaluated in priority order:
//
//  1. AI_TESTS_ONLY when skipped_checks or runtime_config signal that only
//     AI-generated tests ran (human review required)
//  2. L2 when integration or e2e tests ran and the run passed
//  3. L1 when pre-existing user tests ran and the run passed
//  4. otherwise mirror the result tier where it is meaningful, falling back
//     to L0 (parse/lint/type checks only)
func MapTier(result *taxonomy.VerificationResult) taxonomy.Tier {
	skipped := make(map[string]bool, len(result.SkippedChecks))
	for _, check := range result.SkippedChecks {
		skipped[strings.ToLower(check)] = true
	}
	cfg := result.RuntimeConfig

	aiTestsOnly := skipped["ai_tests_only"] ||
		truthy(cfg["ai_tests_only"]) ||
		runtimeLabel(cfg) == "ai_tests_only"
	if aiTestsOnly {
		return taxonomy.TierAITestsOnly
	}

	if (truthy(cfg["integration_tests"]) || truthy(cfg["e2e_tests"])) &&
		result.Status == taxonomy.StatusPass {
		return taxonomy.TierL2
	}

	if (truthy(cfg["user_tests"]) || truthy(cfg["pre_existing_tests"])) &&
		result.Status == taxonomy.StatusPass {
		return taxonomy.TierL1
	}

	// Infer from the tier already on the result (set by the executor).
	switch {
	case result.Tier == taxonomy.TierL2 && result.Status == taxonomy.StatusPass:
		return taxonomy.TierL2
	case result.Tier == taxonomy.TierL1 && result.Status == taxonomy.StatusPass:
		return taxonomy.TierL1
	case result.Tier == taxonomy.TierAITestsOnly:
		return taxonomy.TierAITestsOnly
	}

	return taxonomy.TierL0
}

// runtimeLabel extracts a normalised tier label from runtime config.
func runtimeLabel(cfg map[string]any) string {
	label, ok := cfg["tier_label"]
	if !ok || label == nil || label == "" {
		label = cfg["tier"]
	}
	if label == nil {
		return ""
	}
	if s, ok := label.(string); ok {
		return strings.TrimSpace(strings.ToLower(s))
	}
	return ""
}

// truthy mirrors loose boolean config values: true, non-zero numbers and
// non-empty strings count.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	default:
		return false
	}
}
