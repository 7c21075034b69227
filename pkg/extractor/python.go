package extractor

import (
	"fmt"
	"strings"

	"github.com/go-python/gpython/parser"
)

// ValidatePythonCode returns syntax error details when the candidate is not
// valid Python, or "" when it parses. Parse failures always carry a
// "SyntaxError" prefix so the orchestrator's retry promotion can key on it.
func ValidatePythonCode(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Candidate code is completely empty."
	}
	if _, err := parser.ParseString(code, "exec"); err != nil {
		return fmt.Sprintf("SyntaxError: %v", err)
	}
	return ""
}
