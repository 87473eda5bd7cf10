// Package textutil holds small text-shaping helpers shared by the
// orchestrator and the ingestion core for length capping and rough
// token accounting.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate cuts s to at most maxLen bytes without splitting a multi-byte
// rune, appending "..." when truncation occurred.
func Truncate(s string, maxLen int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}

// EstimateTokens gives a cheap, provider-agnostic token estimate for
// calibrating prompt-compression decisions before a real usage count is
// available from the provider response.
func EstimateTokens(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += utf8.RuneCountInString(t) / 3
	}
	return total
}
