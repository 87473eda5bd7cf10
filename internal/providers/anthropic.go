package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider via the official Anthropic SDK.
type AnthropicProvider struct {
	client       sdk.Client
	defaultModel string
	retryConfig  RetryConfig
}

func NewAnthropicProvider(apiKey, baseURL, defaultModel string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &AnthropicProvider{
		client:       sdk.NewClient(opts...),
		defaultModel: defaultModel,
		retryConfig:  DefaultRetryConfig(),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.Get(ctx, p.defaultModel)
	return err
}

func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params, err := p.buildParams(model, req)
	if err != nil {
		return nil, err
	}

	return RetryDo(ctx, p.retryConfig, func() (*GenerateResponse, error) {
		msg, err := p.client.Messages.New(ctx, *params)
		if err != nil {
			return nil, fmt.Errorf("anthropic: messages.new: %w", err)
		}
		return translateMessage(msg), nil
	})
}

func (p *AnthropicProvider) buildParams(model string, req GenerateRequest) (*sdk.MessageNewParams, error) {
	var system []sdk.TextBlockParam
	var msgs []sdk.MessageParam

	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, sdk.TextBlockParam{Text: m.Content})
			continue
		}
		msgs = append(msgs, encodeMessage(m))
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("anthropic: at least one non-system message is required")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
				Properties: t.Parameters["properties"],
			}, t.Name))
		}
		params.Tools = tools
	}
	return params, nil
}

func encodeMessage(m Message) sdk.MessageParam {
	if m.Role == "tool" {
		block := sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)
		return sdk.NewUserMessage(block)
	}
	if len(m.ToolCalls) > 0 {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
		if m.Content != "" {
			blocks = append(blocks, sdk.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
		}
		return sdk.NewAssistantMessage(blocks...)
	}
	if m.Role == "assistant" {
		return sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content))
	}
	return sdk.NewUserMessage(sdk.NewTextBlock(m.Content))
}

func translateMessage(msg *sdk.Message) *GenerateResponse {
	resp := &GenerateResponse{FinishReason: "stop"}
	var text strings.Builder

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(variant.Text)
		case sdk.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(variant.Input, &args)
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: variant.ID, Name: variant.Name, Arguments: args})
		}
	}
	resp.Content = text.String()
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = "tool_calls"
	}
	if string(msg.StopReason) == "max_tokens" {
		resp.FinishReason = "length"
	}
	resp.Usage = Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return resp
}
