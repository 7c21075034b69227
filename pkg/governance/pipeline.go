package governance

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

var driveLetterPattern = regexp.MustCompile(`^[A-Za-z]:/`)

// TruncationMarker is appended when outbound content exceeds the size cap.
const TruncationMarker = "\n\n...[CONTEXT TRUNCATED BY POLICY]..."

// InjectionMarker replaces each stripped injection phrase.
const InjectionMarker = "[REMOVED_INJECTION_ATTEMPT]"

// Pipeline runs the ordered pre-egress policy stages. Construct once at
// startup; safe for concurrent use.
type Pipeline struct {
	tables *compiledTables
	sink   *AuditSink
	logger *slog.Logger
}

// NewPipeline compiles the policy tables. A nil sink disables the structured
// egress audit log (slog output still happens).
func NewPipeline(tables PolicyTables, sink *AuditSink) (*Pipeline, error) {
	compiled, err := compileTables(tables)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		tables: compiled,
		sink:   sink,
		logger: slog.Default().With("component", "governance"),
	}, nil
}

// Run executes policy checks and returns (safe_payload, audit_record).
//
// Stage order is part of the contract:
//  1. path enforcement (hard block, original content returned)
//  2. known-pattern secret redaction (fail-closed block on any hit)
//  3. high-entropy token redaction (non-blocking)
//  4. prompt-injection minimisation and size cap
//  5. egress byte accounting
func (p *Pipeline) Run(payload ContextPayload) (ContextPayload, AuditRecord) {
	audit := AuditRecord{
		RequestID: payload.RequestID,
		Timestamp: time.Now().UTC(),
		FileCount: len(payload.Files),
	}

	// --- 1. Path enforcement (hard block) ---
	if reason := p.enforcePathRules(payload.Files); reason != "" {
		audit.Blocked = true
		audit.BlockReason = reason
		p.logger.Warn("governance blocked",
			"request_id", payload.RequestID, "reason", reason)
		p.emit(audit)
		return payload, audit
	}

	// --- 2. Known-pattern secret redaction ---
	safeContent, redactions := redactSecrets(payload.Content)
	audit.RedactionCount = redactions

	if redactions > 0 {
		audit.SecretLeakDetected = true
		audit.Blocked = true
		audit.BlockReason = SecretLeakBlockReason
		p.logger.Error("secret leak detected",
			"request_id", payload.RequestID, "confirmed_redactions", redactions)

		// The redacted content is still minimised and returned for auditing,
		// but no downstream stage may act on it and bytes_sent stays 0.
		safeContent, audit.PromptMinimized = p.minimizeContext(safeContent)
		safe := payload
		safe.Content = safeContent
		p.emit(audit)
		return safe, audit
	}

	// --- 3. High-entropy token redaction ---
	safeContent, entropyCount := redactHighEntropy(safeContent)
	audit.HighEntropyRedactionCount = entropyCount
	if entropyCount > 0 {
		p.logger.Warn("high-entropy tokens redacted",
			"request_id", payload.RequestID, "entropy_redactions", entropyCount)
	}

	// --- 4. Injection minimisation ---
	safeContent, audit.PromptMinimized = p.minimizeContext(safeContent)

	// --- 5. Egress byte accounting ---
	safe := payload
	safe.Content = safeContent
	audit.BytesSent = len(safe.Content)

	p.emit(audit)
	return safe, audit
}

// enforcePathRules returns a block reason if any path violates allow or deny
// policy, or "" when all paths pass.
func (p *Pipeline) enforcePathRules(files []string) string {
	for _, filePath := range files {
		normalized := normalizePath(filePath)
		lowerPath := strings.ToLower(normalized)

		if isAbsoluteOrTraversal(normalized) {
			return fmt.Sprintf("Path traversal violation: %s", filePath)
		}

		for _, fragment := range p.tables.denylist {
			if strings.Contains(lowerPath, fragment) {
				return fmt.Sprintf("Path denylist violation: %s is restricted.", filePath)
			}
		}

		allowed := false
		for _, pattern := range p.tables.allowed {
			if pattern.MatchString(normalized) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Sprintf("Path allowlist violation: %s is not allowed.", filePath)
		}
	}
	return ""
}

func normalizePath(path string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(path, `\`, "/"))
	return strings.TrimPrefix(normalized, "./")
}

func isAbsoluteOrTraversal(path string) bool {
	if path == "" {
		return true
	}
	if strings.HasPrefix(path, "/") || driveLetterPattern.MatchString(path) {
		return true
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// minimizeContext strips injection phrases and applies the size cap. The
// returned bool reports whether anything was changed.
func (p *Pipeline) minimizeContext(content string) (string, bool) {
	minimized := false
	cleaned := content

	for _, phrase := range p.tables.phrases {
		if phrase.MatchString(cleaned) {
			cleaned = phrase.ReplaceAllString(cleaned, InjectionMarker)
			minimized = true
		}
	}

	if runes := []rune(cleaned); len(runes) > p.tables.maxChars {
		cleaned = string(runes[:p.tables.maxChars]) + TruncationMarker
		minimized = true
	}

	return cleaned, minimized
}

func (p *Pipeline) emit(audit AuditRecord) {
	p.logger.Info("egress audit",
		"request_id", audit.RequestID,
		"file_count", audit.FileCount,
		"redaction_count", audit.RedactionCount,
		"high_entropy_redaction_count", audit.HighEntropyRedactionCount,
		"bytes_sent", audit.BytesSent,
		"blocked", audit.Blocked,
	)
	if p.sink != nil {
		_ = p.sink.Record(audit)
	}
}
