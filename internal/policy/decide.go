package policy

import (
	"context"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

// Decider wraps Engine with mandatory event-log emission: every
// decision, allow or deny, writes a policy.decision event naming the
// matched rule.
type Decider struct {
	engine *Engine
	events *eventlog.Writer
}

func NewDecider(engine *Engine, events *eventlog.Writer) *Decider {
	return &Decider{engine: engine, events: events}
}

// Decide evaluates pc and records the outcome. spanID is a fresh span
// opened by the caller (the tool runtime, before argument validation);
// the policy decision is recorded as one event on that span.
func (d *Decider) Decide(ctx context.Context, pc Context, traceID, spanID, parentSpanID string) Decision {
	decision := d.engine.Decide(pc)

	payload := map[string]any{
		"tool":     pc.ToolName,
		"rule":     decision.RuleID,
		"allowed":  decision.Allowed,
		"args":     pc.ToolArgs,
	}
	if !decision.Allowed {
		payload["reason"] = decision.ReasonCode
	}

	_, _ = d.events.Emit(ctx, protocol.EventPolicyDecision, "policy", eventlog.Actor{Kind: "system", ID: "policy_engine"},
		payload, traceID, spanID, parentSpanID, pc.ThreadID)

	return decision
}
