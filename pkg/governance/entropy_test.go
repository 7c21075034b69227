package governance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShannonEntropyBounds(t *testing.T) {
	assert.Equal(t, 0.0, shannonEntropy(""))
	assert.Equal(t, 0.0, shannonEntropy("aaaaaaaa"))

	// 16 distinct characters: exactly 4 bits/char.
	assert.InDelta(t, 4.0, shannonEntropy("abcdefghijklmnop"), 0.001)
}

func TestScanSkipsShortTokens(t *testing.T) {
	// High entropy but under the length floor.
	flagged := scanHighEntropyTokens("k9Xp2Qw7")
	assert.Empty(t, flagged)
}

func TestScanSkipsPureAlphaWords(t *testing.T) {
	// Long English-ish words without digits or symbols are never scored.
	flagged := scanHighEntropyTokens("internationalization disestablishmentarian")
	assert.Empty(t, flagged)
}

func TestRedactCountsEveryOccurrence(t *testing.T) {
	token := "A1B2C3D4E5F6G7H8I9J0KaLbMcNdOePf"
	content := token + " middle " + token

	redacted, count := redactHighEntropy(content)

	assert.Equal(t, 2, count)
	assert.NotContains(t, redacted, token)
	assert.Equal(t, 2, strings.Count(redacted, HighEntropyMarker))
}

func TestRedactMonotonicity(t *testing.T) {
	base := "prefix A1B2C3D4E5F6G7H8I9J0KaLbMcNdOePf suffix"
	more := base + " Q1R2S3T4U5V6W7X8Y9Z0qarbscudvewf"

	_, baseCount := redactHighEntropy(base)
	_, moreCount := redactHighEntropy(more)

	// Adding high-entropy tokens never decreases the count.
	assert.GreaterOrEqual(t, moreCount, baseCount)
}

func TestQuotedTokensUnwrapped(t *testing.T) {
	_, count := redactHighEntropy(`value = "A1B2C3D4E5F6G7H8I9J0KaLbMcNdOePf"`)
	assert.GreaterOrEqual(t, count, 1)
}
