// Package providers implements the two-provider router: a
// primary remote LLM and a local fallback, each exposing generate and
// health_check, fronted by retry-with-backoff and a circuit breaker.
package providers

import "context"

// Message is a provider-agnostic chat message, trimmed to what the
// orchestrator needs.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateRequest is the router's and each Provider's call shape:
// generate(messages, tools, temperature, max_tokens).
type GenerateRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
	Model       string
}

// GenerateResponse is either terminal text or a set of tool calls, never
// both: a response with tool calls is a branch, not a blend, with
// terminal content.
type GenerateResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // "stop", "tool_calls", "length"
	Usage        Usage
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	HealthCheck(ctx context.Context) error
}

// OutageKind classifies why a provider call failed, for model.fallback
// payloads and router cooldown decisions.
type OutageKind string

const (
	OutageDNSResolution      OutageKind = "dns_resolution"
	OutageTimeout            OutageKind = "timeout"
	OutageNetworkUnreachable OutageKind = "network_unreachable"
	OutageProviderUnavailable OutageKind = "provider_unavailable"
	OutageQuotaExhausted     OutageKind = "quota_exhausted"
	OutageUnknown            OutageKind = "unknown"
)
