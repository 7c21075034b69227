// Package extractor pulls candidate code out of raw LLM output. The primary
// path is a strict JSON parse validated against the response schema; the
// fallback finds the first triple-fenced code block. Python candidates are
// syntax-checked before handoff so broken code never reaches the sandbox.
package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Result of extracting candidate code from one LLM response.
type Result struct {
	Success      bool   `json:"success"`
	Code         string `json:"code"`
	Language     string `json:"language,omitempty"`
	Notes        string `json:"notes"`
	FallbackUsed bool   `json:"fallback_used"`
	Error        string `json:"error,omitempty"`
}

var fencePattern = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)\n(.*?)```")

// responseSchema is the strict contract the system prompt demands.
var responseSchema = jsonschema.MustCompileString("llm_response.json", `{
	"type": "object",
	"required": ["language", "code", "notes"],
	"properties": {
		"language": {"type": "string"},
		"code": {"type": "string"},
		"notes": {"type": "string"}
	}
}`)

// Extract parses raw LLM output, JSON first, markdown fallback second.
func Extract(responseText string) Result {
	if strings.TrimSpace(responseText) == "" {
		return Result{Error: "Raw LLM response was empty."}
	}

	if structured, ok := parseStructured(responseText); ok {
		return buildResult(structured.Code, structured.Language, structured.Notes, false)
	}

	return parseMarkdownFallback(responseText)
}

type structuredResponse struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Notes    string `json:"notes"`
}

func parseStructured(responseText string) (structuredResponse, bool) {
	cleaned := stripJSONFence(responseText)

	var generic any
	if err := json.Unmarshal([]byte(cleaned), &generic); err != nil {
		return structuredResponse{}, false
	}
	if err := responseSchema.Validate(generic); err != nil {
		return structuredResponse{}, false
	}

	var parsed structuredResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return structuredResponse{}, false
	}
	return parsed, true
}

func stripJSONFence(responseText string) string {
	stripped := strings.TrimSpace(responseText)
	if strings.HasPrefix(stripped, "```json") && strings.HasSuffix(stripped, "```") {
		stripped = strings.TrimPrefix(stripped, "```json")
		stripped = strings.TrimSuffix(stripped, "```")
	}
	return strings.TrimSpace(stripped)
}

func parseMarkdownFallback(responseText string) Result {
	match := fencePattern.FindStringSubmatch(responseText)
	if match == nil {
		return Result{
			FallbackUsed: true,
			Error:        "Could not extract code via JSON or Markdown blocks.",
		}
	}

	language := match[1]
	if language == "" {
		language = "python"
	}
	return buildResult(strings.TrimSpace(match[2]), language, "", true)
}

func buildResult(code, language, notes string, fallbackUsed bool) Result {
	language = strings.ToLower(strings.TrimSpace(language))

	var validationError string
	if strings.TrimSpace(code) == "" {
		validationError = "Candidate code is completely empty."
	} else if language == "python" {
		validationError = ValidatePythonCode(code)
	}

	if validationError != "" {
		return Result{
			Code:         code,
			Language:     language,
			Notes:        notes,
			FallbackUsed: fallbackUsed,
			Error:        validationError,
		}
	}

	return Result{
		Success:      true,
		Code:         code,
		Language:     language,
		Notes:        notes,
		FallbackUsed: fallbackUsed,
	}
}

// IsSyntaxError reports whether an extraction error message denotes a
// candidate syntax failure. The orchestrator promotes these into the retry
// budget.
func IsSyntaxError(message string) bool {
	return strings.Contains(strings.ToLower(message), "syntaxerror")
}
