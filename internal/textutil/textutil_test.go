package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateUnderLimitReturnsUnchanged(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
}

func TestTruncateAppendsEllipsisOverLimit(t *testing.T) {
	got := Truncate("hello world", 5)
	assert.Equal(t, "hello...", got)
}

func TestTruncateDoesNotSplitMultiByteRune(t *testing.T) {
	s := "héllo" // 'é' is 2 bytes in UTF-8, straddling the maxLen=2 cut point
	got := Truncate(s, 2)
	assert.Equal(t, "h...", got)
}

func TestTruncateScrubsInvalidUTF8(t *testing.T) {
	invalid := "abc\xffdef"
	got := Truncate(invalid, 100)
	assert.Equal(t, strings.ToValidUTF8(got, ""), got)
}

func TestEstimateTokensRoughlyScalesWithLength(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 3, EstimateTokens("123456789"))
	assert.Equal(t, 6, EstimateTokens("123456789", "abcdefghi"))
}
