package governance

import (
	"math"
	"regexp"
	"strings"
)

// High-entropy detection catches non-patterned secrets (base64 blobs, random
// API keys) that evade the regex detectors. Tokens are scored with Shannon
// entropy in bits per character: random base64 sits near 6.0, English prose
// near 3.5-4.0.
const (
	// HighEntropyThreshold flags tokens at or above this entropy.
	HighEntropyThreshold = 4.5

	// MinTokenLen skips tokens too short to be meaningful secrets.
	MinTokenLen = 16

	// HighEntropyMarker replaces flagged (non-pattern-confirmed) tokens.
	HighEntropyMarker = "<REDACTED_HIGH_ENTROPY>"
)

// Tokenizer: split on whitespace, quotes, common punctuation and delimiters.
var tokenizerPattern = regexp.MustCompile("[\\s'\"=:,;()\\[\\]{}<>|\\\\@&#%!?\n\r\t]+")

// Only tokens containing at least one digit or symbol character are scored;
// purely alphabetical words (common in code comments) are skipped to reduce
// false positives.
var nonTrivialPattern = regexp.MustCompile(`[0-9+/=_\-]`)

// shannonEntropy returns the entropy of token in bits per character.
func shannonEntropy(token string) float64 {
	if token == "" {
		return 0
	}
	freq := make(map[rune]int)
	length := 0
	for _, r := range token {
		freq[r]++
		length++
	}
	entropy := 0.0
	for _, n := range freq {
		p := float64(n) / float64(length)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// scanHighEntropyTokens returns every over-threshold token in content,
// in encounter order, possibly with duplicates.
func scanHighEntropyTokens(content string) []string {
	var flagged []string
	for _, token := range tokenizerPattern.Split(content, -1) {
		token = strings.Trim(token, "'\"`)\\")
		if len(token) < MinTokenLen {
			continue
		}
		if !nonTrivialPattern.MatchString(token) {
			continue
		}
		if shannonEntropy(token) >= HighEntropyThreshold {
			flagged = append(flagged, token)
		}
	}
	return flagged
}

// redactHighEntropy replaces over-threshold tokens with HighEntropyMarker
// and returns the redacted content plus total replacement count.
func redactHighEntropy(content string) (string, int) {
	flagged := scanHighEntropyTokens(content)
	if len(flagged) == 0 {
		return content, 0
	}

	redacted := content
	count := 0
	seen := make(map[string]bool)
	for _, token := range flagged {
		if seen[token] {
			continue
		}
		seen[token] = true
		n := strings.Count(redacted, token)
		if n > 0 {
			redacted = strings.ReplaceAll(redacted, token, HighEntropyMarker)
			count += n
		}
	}
	return redacted, count
}
