package gateway

import (
	"strings"

	"github.com/dhi-engine/dhi/pkg/governance"
)

// SystemPrompt instructs the provider to answer with a single strict JSON
// object so the extractor's primary parse path can do its job.
const SystemPrompt = `You are Dhi, an advanced AI software engineer.
You will be provided with context files and a user request context.
Your task is to analyze the context and return a secure, robust code solution.
You MUST format your entire response as a single, valid JSON object containing exactly three keys:
{
  "language": "python",
  "code": "print('hello')",
  "notes": "My reasoning and explanation."
}
DO NOT wrap the code value inside markdown fences within the JSON property.
Your response must be parseable by standard JSON parsers.`

// BuildMessages assembles the outbound chat from a governed payload.
func BuildMessages(payload governance.ContextPayload) []Message {
	var b strings.Builder
	b.WriteString("Request ID: " + payload.RequestID + "\n\n")
	if len(payload.Files) > 0 {
		b.WriteString("CONTEXT FILES:\n")
		b.WriteString(strings.Join(payload.Files, ", "))
		b.WriteString("\n\n")
	}
	b.WriteString("CONTEXT CONTENT:\n")
	b.WriteString(payload.Content)

	return []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: strings.TrimSpace(b.String())},
	}
}
