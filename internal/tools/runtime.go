package tools

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nextlevelbuilder/agentcore/internal/errkind"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/internal/policy"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

// Runtime executes tool calls under a fixed pipeline: open a span,
// consult the policy engine, validate arguments, run the handler under
// a timeout, and emit exactly one tool.call.end per tool.call.start.
type Runtime struct {
	registry    *Registry
	decider     *policy.Decider
	events      *eventlog.Writer
	maxTimeout  time.Duration
	validate    *validator.Validate
}

// Validator returns the shared validator.Validate instance, so tool
// registration code can build ValidateArgs closures against the same
// configured instance rather than allocating one per tool.
func (rt *Runtime) Validator() *validator.Validate { return rt.validate }

// Registry exposes the tool registry so callers (the orchestrator's
// prompt assembly) can list tool declarations without Runtime
// re-exposing each registry method individually.
func (rt *Runtime) Registry() *Registry { return rt.registry }

func NewRuntime(registry *Registry, decider *policy.Decider, events *eventlog.Writer, maxTimeout time.Duration) *Runtime {
	return &Runtime{
		registry:   registry,
		decider:    decider,
		events:     events,
		maxTimeout: maxTimeout,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Caller identifies the principal invoking a tool and its governance
// context, mirroring policy.Context's fields that originate outside
// the call arguments themselves.
type Caller struct {
	PrincipalID string
	Governance  policy.AgentGovernance
	SystemState policy.SystemState
	Permitted   func(principal, tool string) bool
}

// Execute runs the five-step pipeline above and returns the terminal
// Result. toolCallsInTrace is the count of tool.call.start events
// already observed for traceID, used by policy rule R8.
func (rt *Runtime) Execute(ctx context.Context, name string, args map[string]any, caller Caller, traceID, parentSpanID, threadID string, toolCallsInTrace int) *Result {
	spanID := idgen.Span()

	startPayload := map[string]any{"tool": name, "args": args}
	_, _ = rt.events.Emit(ctx, protocol.EventToolCallStart, "tools", eventlog.Actor{Kind: "agent", ID: caller.PrincipalID},
		startPayload, traceID, spanID, parentSpanID, threadID)

	result := rt.run(ctx, name, args, caller, traceID, spanID, parentSpanID, threadID, toolCallsInTrace)

	endPayload := map[string]any{"tool": name, "status": string(result.Status)}
	if result.IsError {
		endPayload["error"] = result.ForLLM
	}
	_, _ = rt.events.Emit(ctx, protocol.EventToolCallEnd, "tools", eventlog.Actor{Kind: "agent", ID: caller.PrincipalID},
		endPayload, traceID, spanID, parentSpanID, threadID)

	return result
}

func (rt *Runtime) run(ctx context.Context, name string, args map[string]any, caller Caller, traceID, spanID, parentSpanID, threadID string, toolCallsInTrace int) *Result {
	decl, registered := rt.registry.Get(name)

	var fsPaths []string
	if registered && decl.FilesystemPaths != nil {
		fsPaths = resolveAbs(decl.FilesystemPaths(args))
	}

	decision := rt.decider.Decide(ctx, policy.Context{
		PrincipalID:      caller.PrincipalID,
		ToolName:         name,
		ToolArgs:         args,
		ThreadID:         threadID,
		TraceID:          traceID,
		SystemState:      caller.SystemState,
		Governance:       caller.Governance,
		ToolCallsInTrace: toolCallsInTrace,
		Permitted:        caller.Permitted,
		Tool: func(n string) (policy.ToolInfo, bool) {
			d, ok := rt.registry.Get(n)
			if !ok {
				return policy.ToolInfo{}, false
			}
			return policy.ToolInfo{
				Registered:      true,
				MinRiskTier:     d.MinRiskTier,
				SessionScoped:   d.SessionScoped,
				FilesystemPaths: fsPaths,
			}, true
		},
	}, traceID, spanID, parentSpanID)

	if !decision.Allowed {
		return Denied(decision.ReasonCode)
	}
	if !registered {
		return Denied("unknown_tool")
	}

	if decl.ValidateArgs != nil {
		if err := decl.ValidateArgs(args); err != nil {
			return InvalidArgs(err.Error())
		}
	}

	timeout := decl.Timeout
	if timeout <= 0 || timeout > rt.maxTimeout {
		timeout = rt.maxTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *Result, 1)
	go func() {
		done <- decl.Tool.Execute(runCtx, args)
	}()

	select {
	case res := <-done:
		if res == nil {
			return Error(errkind.FatalInvariant, "tool returned nil result")
		}
		return res
	case <-runCtx.Done():
		return Timeout()
	}
}

func resolveAbs(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			out[i] = p
			continue
		}
		out[i] = abs
	}
	return out
}
