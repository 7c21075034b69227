package orchestrator

import (
	"strconv"
	"strings"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// maxOutputChars bounds the stdout/stderr evidence embedded in a repair
// prompt so retries do not bloat the outbound context.
const maxOutputChars = 2_000

func truncateOutput(text string) string {
	if len(text) <= maxOutputChars {
		return text
	}
	return text[:maxOutputChars] + "\n...[TRUNCATED]"
}

func failureGuidance(class taxonomy.FailureClass) string {
	switch class {
	case taxonomy.FailureSyntax:
		return "The previous code had a SYNTAX ERROR. " +
			"Review the error output carefully and emit clean, syntactically valid Python."
	case taxonomy.FailureDeterministic:
		return "The previous code produced a DETERMINISTIC LOGICAL FAILURE " +
			"(consistent wrong output or exception). " +
			"Do not change the overall approach - instead fix the specific " +
			"logical error shown in the error output."
	default:
		return "The previous attempt failed. Analyze the error output and produce a corrected solution."
	}
}

// BuildRepairPrompt constructs the deterministic repair prompt embedding the
// original context, the failure classification and execution evidence. The
// returned string replaces the payload content on the next attempt; it is
// always built from the caller's original content, never from a previous
// repair prompt.
func BuildRepairPrompt(originalContent string, lastResult *taxonomy.VerificationResult) string {
	failureClass := "unknown"
	if lastResult.FailureClass != "" {
		failureClass = string(lastResult.FailureClass)
	}

	sections := []string{
		"## PREVIOUS ATTEMPT FAILED - REPAIR REQUIRED",
		"",
		"**Failure class:** " + failureClass,
		"**Attempt number:** " + strconv.Itoa(lastResult.Attempt),
		"",
		"### Guidance",
		failureGuidance(lastResult.FailureClass),
		"",
	}

	if strings.TrimSpace(lastResult.Stdout) != "" {
		sections = append(sections,
			"### Captured stdout",
			"```",
			truncateOutput(lastResult.Stdout),
			"```",
			"",
		)
	}

	if strings.TrimSpace(lastResult.Stderr) != "" {
		sections = append(sections,
			"### Captured stderr",
			"```",
			truncateOutput(lastResult.Stderr),
			"```",
			"",
		)
	}

	sections = append(sections,
		"---",
		"",
		"## Original Request",
		originalContent,
	)

	return strings.Join(sections, "\n")
}
