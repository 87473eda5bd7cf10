package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactMasksDeniedKeys(t *testing.T) {
	out := Redact(map[string]any{"api_key": "sk-abc123", "note": "fine"})
	assert.Equal(t, redactedLiteral, out["api_key"])
	assert.Equal(t, "fine", out["note"])
}

func TestRedactMasksBearerLikeStrings(t *testing.T) {
	out := Redact(map[string]any{"header": "Bearer abcdefghijklmnopqrstuvwxyz0123456789"})
	assert.Equal(t, redactedLiteral, out["header"])
}

func TestRedactMasksPhoneNumbersKeepingLastFour(t *testing.T) {
	out := Redact(map[string]any{"phone": "+1-555-123-4567"})
	assert.Equal(t, "*******4567", out["phone"])
}

func TestRedactRecursesIntoNestedMapsAndSlices(t *testing.T) {
	out := Redact(map[string]any{
		"nested": map[string]any{"secret": "xyz"},
		"list":   []any{"hello", "+1-555-123-4567"},
	})
	nested := out["nested"].(map[string]any)
	assert.Equal(t, redactedLiteral, nested["secret"])

	list := out["list"].([]any)
	assert.Equal(t, "hello", list[0])
	assert.Equal(t, "*******4567", list[1])
}

func TestRedactNilPayloadReturnsNil(t *testing.T) {
	assert.Nil(t, Redact(nil))
}

func TestRedactDoesNotMutateOriginal(t *testing.T) {
	original := map[string]any{"password": "hunter2"}
	_ = Redact(original)
	assert.Equal(t, "hunter2", original["password"])
}
