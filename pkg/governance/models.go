package governance

import (
	"fmt"
	"time"
)

// ContextPayload is the inbound unit of work: request metadata plus the
// prompt-and-context content. Payloads are immutable once constructed.
type ContextPayload struct {
	RequestID string   `json:"request_id"`
	Attempt   int      `json:"attempt"`
	Files     []string `json:"files"`
	Content   string   `json:"content"`
}

// NewContextPayload validates and constructs a payload.
func NewContextPayload(requestID string, attempt int, files []string, content string) (ContextPayload, error) {
	if requestID == "" {
		return ContextPayload{}, fmt.Errorf("governance: payload missing request_id")
	}
	if attempt < 1 || attempt > 3 {
		return ContextPayload{}, fmt.Errorf("governance: attempt %d out of range [1,3]", attempt)
	}
	return ContextPayload{
		RequestID: requestID,
		Attempt:   attempt,
		Files:     append([]string(nil), files...),
		Content:   content,
	}, nil
}

// AuditRecord is the decision trail of one pipeline pass. Produced exactly
// once per request and read-only afterwards.
type AuditRecord struct {
	RequestID                 string    `json:"request_id"`
	Timestamp                 time.Time `json:"timestamp"`
	FileCount                 int       `json:"file_count"`
	RedactionCount            int       `json:"redaction_count"`
	HighEntropyRedactionCount int       `json:"high_entropy_redaction_count"`
	PromptMinimized           bool      `json:"prompt_minimized"`
	Blocked                   bool      `json:"blocked"`
	BlockReason               string    `json:"block_reason,omitempty"`
	SecretLeakDetected        bool      `json:"secret_leak_detected"`
	BytesSent                 int       `json:"bytes_sent"`
}
