package orchestrator

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/agentcore/internal/providers"
)

// terminalSynthesis asks the provider router for a short closing
// summary with no tools available, the mandatory
// forced-closure call used both after loop exhaustion and after a full
// provider outage. reasonHint is carried through only for log/trace
// correlation; the caller decides the final reason code from whether
// this call errors or returns empty content.
func (o *Orchestrator) terminalSynthesis(ctx context.Context, messages []providers.Message, traceID, spanID, threadID, reasonHint string) (string, error) {
	req := providers.GenerateRequest{
		Messages: append(messages, providers.Message{
			Role:    "user",
			Content: "Provide a brief, final response to the user summarizing what was accomplished so far. Do not call any tools.",
		}),
		Temperature: 0.2,
		MaxTokens:   512,
	}
	resp, err := o.router.Generate(ctx, req, traceID, spanID, "", threadID)
	if err != nil {
		slog.Warn("orchestrator.terminal_synthesis_failed", "trace_id", traceID, "reason", reasonHint, "error", err)
		return "", err
	}
	return resp.Content, nil
}
