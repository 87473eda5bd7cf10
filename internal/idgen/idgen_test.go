package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorsProducePrefixedUniqueIDs(t *testing.T) {
	generators := map[string]func() string{
		"usr_": User,
		"thr_": Thread,
		"msg_": Message,
		"trc_": Trace,
		"spn_": Span,
		"sch_": Schedule,
		"evt_": Event,
		"tsk_": Task,
	}

	for prefix, gen := range generators {
		a, b := gen(), gen()
		assert.True(t, HasPrefix(a, prefix), "expected %q to carry prefix %q", a, prefix)
		assert.NotEqual(t, a, b, "two calls to the same generator must not collide")
	}
}

func TestHasPrefix(t *testing.T) {
	id := Thread()
	assert.True(t, HasPrefix(id, "thr_"))
	assert.False(t, HasPrefix(id, "msg_"))
	assert.False(t, HasPrefix("short", "thr_longer_prefix_"))
}
