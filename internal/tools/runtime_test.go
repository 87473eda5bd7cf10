package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/policy"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
)

type fakeTool struct {
	name  string
	delay time.Duration
	ret   *Result
}

func (f fakeTool) Name() string               { return f.name }
func (f fakeTool) Description() string        { return "fake" }
func (f fakeTool) Parameters() map[string]any { return map[string]any{} }
func (f fakeTool) Execute(ctx context.Context, args map[string]any) *Result {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Timeout()
		}
	}
	return f.ret
}

func newTestRuntime(t *testing.T, safeTools []string, reg *Registry) (*Runtime, *memstore.EventStore) {
	t.Helper()
	store := memstore.NewEventStore()
	events := eventlog.NewWriter(store, true)
	decider := policy.NewDecider(policy.New(safeTools), events)
	return NewRuntime(reg, decider, events, 200*time.Millisecond), store
}

func openCaller() Caller {
	return Caller{
		PrincipalID: "agt_main",
		Governance: policy.AgentGovernance{
			AgentID:            "agt_main",
			RiskTier:           policy.RiskHigh,
			IsPrimaryForThread: true,
		},
		Permitted: func(principal, tool string) bool { return true },
	}
}

func TestRuntimeExecuteAllowedToolReturnsOK(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Declaration{Tool: fakeTool{name: "search", ret: OK("found it")}, MinRiskTier: policy.RiskLow})
	rt, eventStore := newTestRuntime(t, nil, reg)

	res := rt.Execute(context.Background(), "search", map[string]any{}, openCaller(), "trc_1", "", "thr_1", 0)
	assert.Equal(t, StatusOK, res.Status)
	assert.False(t, res.IsError)

	events, err := eventStore.Search(context.Background(), eventlog.Filters{TraceID: "trc_1"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "tool.call.start", events[0].EventType)
	assert.Equal(t, "policy.decision", events[1].EventType)
	assert.Equal(t, "tool.call.end", events[2].EventType)
}

func TestRuntimeExecuteUnknownToolIsDenied(t *testing.T) {
	rt, _ := newTestRuntime(t, nil, NewRegistry())
	res := rt.Execute(context.Background(), "ghost", nil, openCaller(), "trc_1", "", "thr_1", 0)
	assert.Equal(t, StatusDenied, res.Status)
	assert.True(t, res.IsError)
}

func TestRuntimeExecuteRiskTierDenied(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Declaration{Tool: fakeTool{name: "exec", ret: OK("done")}, MinRiskTier: policy.RiskHigh})
	rt, _ := newTestRuntime(t, nil, reg)

	caller := openCaller()
	caller.Governance.RiskTier = policy.RiskLow
	res := rt.Execute(context.Background(), "exec", nil, caller, "trc_1", "", "thr_1", 0)
	assert.Equal(t, StatusDenied, res.Status)
}

func TestRuntimeExecuteValidateArgsFailureReturnsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Declaration{
		Tool:        fakeTool{name: "search", ret: OK("should not run")},
		MinRiskTier: policy.RiskLow,
		ValidateArgs: func(args map[string]any) error {
			return errors.New("query is required")
		},
	})
	rt, _ := newTestRuntime(t, nil, reg)

	res := rt.Execute(context.Background(), "search", map[string]any{}, openCaller(), "trc_1", "", "thr_1", 0)
	assert.Equal(t, StatusInvalid, res.Status)
	assert.Contains(t, res.ForLLM, "query is required")
}

func TestRuntimeExecuteTimesOutSlowTool(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Declaration{
		Tool:        fakeTool{name: "slow", delay: time.Second, ret: OK("too late")},
		MinRiskTier: policy.RiskLow,
		Timeout:     10 * time.Millisecond,
	})
	rt, _ := newTestRuntime(t, nil, reg)

	res := rt.Execute(context.Background(), "slow", nil, openCaller(), "trc_1", "", "thr_1", 0)
	assert.Equal(t, StatusTimeout, res.Status)
}

func TestRuntimeExecuteLockdownAllowsOnlySafeTools(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Declaration{Tool: fakeTool{name: "status", ret: OK("up")}, MinRiskTier: policy.RiskLow})
	reg.Register(Declaration{Tool: fakeTool{name: "exec", ret: OK("ran")}, MinRiskTier: policy.RiskLow})
	rt, _ := newTestRuntime(t, []string{"status"}, reg)

	caller := openCaller()
	caller.SystemState.Lockdown = true

	okRes := rt.Execute(context.Background(), "status", nil, caller, "trc_1", "", "thr_1", 0)
	assert.Equal(t, StatusOK, okRes.Status)

	deniedRes := rt.Execute(context.Background(), "exec", nil, caller, "trc_2", "", "thr_1", 0)
	assert.Equal(t, StatusDenied, deniedRes.Status)
}
