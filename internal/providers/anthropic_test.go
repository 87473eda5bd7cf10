package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParamsRequiresNonSystemMessage(t *testing.T) {
	p := &AnthropicProvider{defaultModel: "claude-test"}
	_, err := p.buildParams("claude-test", GenerateRequest{
		Messages: []Message{{Role: "system", Content: "be helpful"}},
	})
	require.Error(t, err)
}

func TestBuildParamsSeparatesSystemFromConversation(t *testing.T) {
	p := &AnthropicProvider{defaultModel: "claude-test"}
	params, err := p.buildParams("claude-test", GenerateRequest{
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "hi"},
		},
	})
	require.NoError(t, err)
	require.Len(t, params.System, 1)
	assert.Equal(t, "be helpful", params.System[0].Text)
	assert.Len(t, params.Messages, 1)
}

func TestBuildParamsDefaultsMaxTokens(t *testing.T) {
	p := &AnthropicProvider{defaultModel: "claude-test"}
	params, err := p.buildParams("claude-test", GenerateRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4096, params.MaxTokens)
}

func TestBuildParamsHonorsExplicitMaxTokensAndTemperature(t *testing.T) {
	p := &AnthropicProvider{defaultModel: "claude-test"}
	params, err := p.buildParams("claude-test", GenerateRequest{
		Messages:    []Message{{Role: "user", Content: "hi"}},
		MaxTokens:   512,
		Temperature: 0.4,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 512, params.MaxTokens)
	assert.InDelta(t, 0.4, params.Temperature.Value, 1e-9)
}
