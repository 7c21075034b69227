package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractStructuredJSON(t *testing.T) {
	raw := `{"language": "python", "code": "print('hello')", "notes": "greets"}`

	result := Extract(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "print('hello')", result.Code)
	assert.Equal(t, "python", result.Language)
	assert.Equal(t, "greets", result.Notes)
	assert.False(t, result.FallbackUsed)
}

func TestExtractFencedJSON(t *testing.T) {
	raw := "```json\n{\"language\": \"python\", \"code\": \"x = 1\", \"notes\": \"\"}\n```"

	result := Extract(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "x = 1", result.Code)
	assert.False(t, result.FallbackUsed)
}

func TestExtractMarkdownFallback(t *testing.T) {
	raw := "Here is the solution:\n```python\nprint('fallback')\n```\nHope that helps."

	result := Extract(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "print('fallback')", result.Code)
	assert.Equal(t, "python", result.Language)
	assert.True(t, result.FallbackUsed)
}

func TestExtractBareFenceDefaultsToPython(t *testing.T) {
	raw := "```\nprint('no language tag')\n```"

	result := Extract(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "python", result.Language)
}

func TestExtractEmptyResponse(t *testing.T) {
	result := Extract("   \n ")

	assert.False(t, result.Success)
	assert.Equal(t, "Raw LLM response was empty.", result.Error)
}

func TestExtractNothingParseable(t *testing.T) {
	result := Extract("I could not produce code for this request.")

	assert.False(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Contains(t, result.Error, "Could not extract code")
}

func TestJSONMissingKeysFallsBack(t *testing.T) {
	// Valid JSON that misses the schema keys must not short-circuit the
	// fence fallback.
	raw := "{\"answer\": \"see below\"}\n```python\ny = 2\n```"

	result := Extract(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "y = 2", result.Code)
	assert.True(t, result.FallbackUsed)
}

func TestEmptyCodeAlwaysFails(t *testing.T) {
	raw := `{"language": "python", "code": "   ", "notes": "empty"}`

	result := Extract(raw)

	assert.False(t, result.Success)
	assert.Equal(t, "Candidate code is completely empty.", result.Error)
}

func TestInvalidPythonRejected(t *testing.T) {
	raw := `{"language": "python", "code": "def broken(:\n    pass", "notes": ""}`

	result := Extract(raw)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "SyntaxError")
}

func TestNonPythonSkipsSyntaxCheck(t *testing.T) {
	raw := `{"language": "javascript", "code": "console.log(1)", "notes": ""}`

	result := Extract(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "javascript", result.Language)
}

func TestValidatePythonCode(t *testing.T) {
	assert.Empty(t, ValidatePythonCode("x = 1\nprint(x)"))
	assert.Contains(t, ValidatePythonCode("for x in:"), "SyntaxError")
	assert.Equal(t, "Candidate code is completely empty.", ValidatePythonCode(" "))
}

func TestIsSyntaxError(t *testing.T) {
	assert.True(t, IsSyntaxError("SyntaxError at line 3"))
	assert.True(t, IsSyntaxError("wrapped: syntaxerror detected"))
	assert.False(t, IsSyntaxError("network unreachable"))
	assert.False(t, IsSyntaxError(""))
}
