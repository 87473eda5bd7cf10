// Package orchestrator implements the step loop: prompt assembly under
// a per-provider token budget, a bounded tool-call iteration against
// the provider router, and terminal synthesis so a step never returns
// without persisting an assistant message. This is the hottest
// subsystem, built around store-backed threads and the deny-by-default
// policy engine rather than in-memory sessions.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/errkind"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/internal/memory"
	"github.com/nextlevelbuilder/agentcore/internal/policy"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
	"github.com/nextlevelbuilder/agentcore/internal/providers"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/internal/tools"
)

// Orchestrator wires the step loop's dependencies. One instance serves
// every thread and agent; per-step state lives entirely in StepInput
// and local variables of Step.
type Orchestrator struct {
	stores  *store.Stores
	runtime *tools.Runtime
	router  *providers.Router
	memory  memory.Interface
	events  *eventlog.Writer

	cfg          config.OrchestratorConfig
	providersCfg config.ProvidersConfig

	// EnqueueCompaction is called when the compaction trigger fires.
	// When nil, compaction is a no-op; cmd/agentcore's buildApp sets it
	// to enqueue a "compact_thread" task.
	EnqueueCompaction func(ctx context.Context, threadID string) error
}

func New(stores *store.Stores, runtime *tools.Runtime, router *providers.Router, mem memory.Interface, events *eventlog.Writer, cfg config.OrchestratorConfig, providersCfg config.ProvidersConfig) *Orchestrator {
	if mem == nil {
		mem = memory.NullMemory{}
	}
	return &Orchestrator{
		stores:       stores,
		runtime:      runtime,
		router:       router,
		memory:       mem,
		events:       events,
		cfg:          cfg,
		providersCfg: providersCfg,
	}
}

// StepInput identifies what triggered this step ("one new
// user message (or one scheduled trigger) against one thread").
type StepInput struct {
	ThreadID          string
	AgentID           string
	TriggerMessageID  string // set for inbound-message triggers
	ScheduleID        string // set for scheduled triggers
	TriggerText       string // the text to append as the fresh user/trigger turn
	TraceID           string // inherited trace id, or empty to start a new trace
}

// StepResult is the one terminal assistant message a step always
// produces, plus the reason it terminated.
type StepResult struct {
	Message    store.Message
	Reason     string // one of the protocol.StepReason* constants
	Iterations int
}

// Step runs one full orchestrator step: assemble the prompt, iterate
// provider/tool calls up to the agent's action budget, and persist
// exactly one terminal assistant message.
func (o *Orchestrator) Step(ctx context.Context, in StepInput) (*StepResult, error) {
	thread, ok, err := o.stores.Threads.Get(ctx, in.ThreadID)
	if err != nil {
		return nil, errkind.New(errkind.TransientDBLocked, "", err)
	}
	if !ok {
		return nil, errkind.New(errkind.PermanentNotFound, "thread_not_found", nil)
	}

	bundle, ok, err := o.stores.Agents.Get(ctx, in.AgentID)
	if err != nil {
		return nil, errkind.New(errkind.TransientDBLocked, "", err)
	}
	if !ok {
		return nil, errkind.New(errkind.PermanentNotFound, "agent_not_found", nil)
	}

	traceID := in.TraceID
	if traceID == "" {
		traceID = idgen.Trace()
	}
	stepSpanID := idgen.Span()

	governance := policy.AgentGovernance{
		AgentID:            bundle.ID,
		RiskTier:           policy.ParseRiskTier(bundle.RiskTier),
		MaxActionsPerStep:  bundle.MaxActionsPerStep,
		AllowedPaths:       bundle.AllowedPaths,
		IsPrimaryForThread: isPrimary(thread, bundle.ID),
	}
	sysState, err := o.stores.SystemState.Get(ctx)
	if err != nil {
		return nil, errkind.New(errkind.TransientDBLocked, "", err)
	}
	caller := tools.Caller{
		PrincipalID: bundle.ID,
		Governance:  governance,
		SystemState: policy.SystemState{Lockdown: sysState.Lockdown, Restarting: sysState.Restarting},
		Permitted: func(principal, tool string) bool {
			allowed, permErr := o.stores.Permissions.Permitted(ctx, principal, tool)
			if permErr != nil {
				slog.Warn("orchestrator.permission_lookup_failed", "principal", principal, "tool", tool, "error", permErr)
				return false
			}
			return allowed
		},
	}

	_, _ = o.events.Emit(ctx, protocol.EventAgentStepStart, "orchestrator", eventlog.Actor{Kind: "agent", ID: bundle.ID},
		map[string]any{"trigger_message_id": in.TriggerMessageID, "schedule_id": in.ScheduleID}, traceID, stepSpanID, "", in.ThreadID)

	messages, err := o.assemble(ctx, thread, bundle, in.TriggerText)
	if err != nil {
		return nil, err
	}

	content, reason, toolCount, loopErr := o.runLoop(ctx, messages, bundle, caller, traceID, stepSpanID, in.ThreadID)
	if loopErr != nil {
		return nil, loopErr
	}

	if reason == protocol.StepReasonCancelled {
		_, _ = o.events.Emit(ctx, protocol.EventAgentStepCancelled, "orchestrator", eventlog.Actor{Kind: "agent", ID: bundle.ID},
			map[string]any{"tool_calls": toolCount}, traceID, stepSpanID, "", in.ThreadID)
		return &StepResult{Reason: reason, Iterations: toolCount}, nil
	}

	msg := store.Message{
		ID:                 idgen.Message(),
		ThreadID:           in.ThreadID,
		Role:               store.RoleAssistant,
		Content:            content,
		ExternalDeliveryID: "",
	}
	if err := o.stores.Messages.Create(ctx, msg); err != nil {
		return nil, errkind.New(errkind.TransientDBLocked, "", err)
	}

	_, _ = o.events.Emit(ctx, protocol.EventAgentStepEnd, "orchestrator", eventlog.Actor{Kind: "agent", ID: bundle.ID},
		map[string]any{"reason": reason, "tool_calls": toolCount}, traceID, stepSpanID, "", in.ThreadID)

	o.maybeCompact(ctx, thread)

	return &StepResult{Message: msg, Reason: reason, Iterations: toolCount}, nil
}

func isPrimary(t store.Thread, agentID string) bool {
	if len(t.ActiveAgentSet) == 0 {
		return false
	}
	return t.ActiveAgentSet[0] == agentID
}

// runLoop implements the bounded tool-call iteration and the
// provider-error / loop-exhaustion terminal synthesis fallbacks.
func (o *Orchestrator) runLoop(ctx context.Context, messages []providers.Message, bundle store.AgentBundle, caller tools.Caller, traceID, spanID, threadID string) (content, reason string, toolCount int, err error) {
	toolDefs := o.toolDefinitions(bundle, caller)
	maxActions := bundle.MaxActionsPerStep
	if maxActions <= 0 {
		maxActions = 1
	}

	req := providers.GenerateRequest{
		Messages:    messages,
		Tools:       toolDefs,
		Temperature: 0.7,
		MaxTokens:   defaultMaxTokens,
	}

	for {
		if ctx.Err() != nil {
			return "", protocol.StepReasonCancelled, toolCount, nil
		}

		req.Messages = messages
		resp, genErr := o.router.Generate(ctx, req, traceID, spanID, "", threadID)
		if genErr != nil {
			text, synthErr := o.terminalSynthesis(ctx, messages, traceID, spanID, threadID, protocol.ReasonProviderErrorTerminalSynthesis)
			if synthErr != nil {
				return placeholderMessage(traceID, protocol.ReasonProviderErrorTerminalSynthesis), protocol.StepReasonError, toolCount, nil
			}
			if strings.TrimSpace(text) == "" {
				return placeholderMessage(traceID, protocol.ReasonPlaceholderAfterTerminalSynth), protocol.StepReasonError, toolCount, nil
			}
			return text, protocol.StepReasonError, toolCount, nil
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, protocol.StepReasonCompleted, toolCount, nil
		}

		assistantMsg := providers.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)

		stopped := false
		for _, tc := range resp.ToolCalls {
			toolCount++
			if toolCount > maxActions {
				stopped = true
				break
			}
			result := o.runtime.Execute(ctx, tc.Name, tc.Arguments, caller, traceID, spanID, threadID, toolCount-1)
			messages = append(messages, providers.Message{Role: "tool", Content: result.ForLLM, ToolCallID: tc.ID})
		}

		if stopped {
			text, synthErr := o.terminalSynthesis(ctx, messages, traceID, spanID, threadID, protocol.ReasonPlaceholderAfterToolLoop)
			if synthErr != nil {
				return placeholderMessage(traceID, protocol.ReasonPlaceholderAfterToolLoop), protocol.StepReasonMaxActionsPerStep, toolCount, nil
			}
			if strings.TrimSpace(text) == "" {
				return placeholderMessage(traceID, protocol.ReasonPlaceholderAfterTerminalSynth), protocol.StepReasonMaxActionsPerStep, toolCount, nil
			}
			return text, protocol.StepReasonMaxActionsPerStep, toolCount, nil
		}
	}
}

const defaultMaxTokens = 4096

func placeholderMessage(traceID, reasonCode string) string {
	return "I couldn't complete this request (trace " + traceID + ", reason " + reasonCode + "). An operator has been notified."
}

// toolDefinitions lists the tools visible to the provider for this
// call, filtered to what the caller is permitted to invoke. The
// runtime still re-checks every rule at call time; this
// filter only shapes what the model is offered, it grants nothing.
func (o *Orchestrator) toolDefinitions(bundle store.AgentBundle, caller tools.Caller) []providers.ToolDefinition {
	reg := o.runtime.Registry()
	var defs []providers.ToolDefinition
	for _, name := range reg.List() {
		decl, ok := reg.Get(name)
		if !ok {
			continue
		}
		if !toolVisible(bundle, caller, name) {
			continue
		}
		defs = append(defs, providers.ToolDefinition{
			Name:        decl.Tool.Name(),
			Description: decl.Tool.Description(),
			Parameters:  decl.Tool.Parameters(),
		})
	}
	return defs
}

func toolVisible(bundle store.AgentBundle, caller tools.Caller, name string) bool {
	for _, allowed := range bundle.AllowedTools {
		if allowed == "*" || allowed == name {
			return true
		}
	}
	return caller.Permitted(bundle.ID, name) || caller.Permitted(bundle.ID, "*")
}
