package governance

import "regexp"

// SecretMarker replaces every confirmed secret match.
const SecretMarker = "<REDACTED_SECRET>"

// SecretLeakBlockReason is the fail-closed block reason attached to the audit
// record whenever a confirmed secret pattern was found.
const SecretLeakBlockReason = "SecretLeakDetected: confirmed secret pattern detected in context. Cloud egress blocked."

// Confirmed secret patterns with deterministic replacement, applied in order.
var (
	awsAccessKeyPattern = regexp.MustCompile(`(?i)\bAKIA[0-9A-Z]{16}\b`)

	tokenAssignmentPattern = regexp.MustCompile(
		`(?i)(\b(?:secret|token|api_key|password)\b\s*[:=]\s*["']?)([A-Za-z0-9/+=._-]{16,80})(["']?)`)

	privateKeyPattern = regexp.MustCompile(
		`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]+?-----END [A-Z ]*PRIVATE KEY-----`)
)

// redactSecrets replaces known secret patterns and returns the cleaned
// content plus the number of redactions made.
func redactSecrets(content string) (string, int) {
	count := 0

	cleaned := awsAccessKeyPattern.ReplaceAllStringFunc(content, func(string) string {
		count++
		return SecretMarker
	})

	cleaned = tokenAssignmentPattern.ReplaceAllStringFunc(cleaned, func(match string) string {
		count++
		groups := tokenAssignmentPattern.FindStringSubmatch(match)
		return groups[1] + SecretMarker + groups[3]
	})

	cleaned = privateKeyPattern.ReplaceAllStringFunc(cleaned, func(string) string {
		count++
		return SecretMarker
	})

	return cleaned, count
}
