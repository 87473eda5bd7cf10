package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/errkind"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/policy"
	"github.com/nextlevelbuilder/agentcore/internal/providers"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
	"github.com/nextlevelbuilder/agentcore/internal/tools"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

type fakeProvider struct {
	name    string
	content string
	calls   []providers.GenerateRequest
	err     error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Generate(ctx context.Context, req providers.GenerateRequest) (*providers.GenerateResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &providers.GenerateResponse{Content: f.content, FinishReason: "stop"}, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

type scriptedProvider struct {
	name      string
	responses []providers.GenerateResponse
	errs      []error
	i         int
}

func (s *scriptedProvider) Name() string { return s.name }
func (s *scriptedProvider) Generate(ctx context.Context, req providers.GenerateRequest) (*providers.GenerateResponse, error) {
	idx := s.i
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.i++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	resp := s.responses[idx]
	return &resp, nil
}
func (s *scriptedProvider) HealthCheck(ctx context.Context) error { return nil }

type fixture struct {
	orch       *Orchestrator
	stores     *store.Stores
	router     *providers.Router
	eventStore *memstore.EventStore
}

func newFixture(t *testing.T, primary, fallback providers.Provider, reg *tools.Registry) *fixture {
	t.Helper()
	stores := memstore.Stores()
	eventStore := memstore.NewEventStore()
	events := eventlog.NewWriter(eventStore, true)

	if reg == nil {
		reg = tools.NewRegistry()
	}
	engine := policy.New(nil)
	decider := policy.NewDecider(engine, events)
	runtime := tools.NewRuntime(reg, decider, events, time.Second)

	router := providers.NewRouter(primary, fallback, events, time.Hour, time.Minute)

	orch := New(stores, runtime, router, nil, events, config.OrchestratorConfig{}, config.ProvidersConfig{})
	return &fixture{orch: orch, stores: stores, router: router, eventStore: eventStore}
}

func mustCreateThread(t *testing.T, stores *store.Stores, id string, activeAgents []string) {
	t.Helper()
	require.NoError(t, stores.Threads.Create(context.Background(), store.Thread{
		ID: id, OwnerUserID: "usr_1", ChannelType: "webhook", ActiveAgentSet: activeAgents,
	}))
}

func mustPutAgent(stores *store.Stores, bundle store.AgentBundle) {
	stores.Agents.Put(bundle)
}

func TestStepThreadNotFoundIsPermanentError(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "anthropic", content: "hi"}, &fakeProvider{name: "local"}, nil)

	_, err := f.orch.Step(context.Background(), StepInput{ThreadID: "thr_missing", AgentID: "agt_1"})
	require.Error(t, err)
	assert.Equal(t, errkind.PermanentNotFound, errkind.ClassifyOf(err))
}

func TestStepAgentNotFoundIsPermanentError(t *testing.T) {
	f := newFixture(t, &fakeProvider{name: "anthropic", content: "hi"}, &fakeProvider{name: "local"}, nil)
	mustCreateThread(t, f.stores, "thr_1", nil)

	_, err := f.orch.Step(context.Background(), StepInput{ThreadID: "thr_1", AgentID: "agt_missing"})
	require.Error(t, err)
	assert.Equal(t, errkind.PermanentNotFound, errkind.ClassifyOf(err))
}

func TestStepHappyPathNoToolCallsCompletes(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", content: "final answer"}
	f := newFixture(t, primary, &fakeProvider{name: "local"}, nil)
	mustCreateThread(t, f.stores, "thr_1", []string{"agt_1"})
	mustPutAgent(f.stores, store.AgentBundle{ID: "agt_1", Identity: "an agent", RiskTier: "high", MaxActionsPerStep: 3})

	res, err := f.orch.Step(context.Background(), StepInput{ThreadID: "thr_1", AgentID: "agt_1", TriggerText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StepReasonCompleted, res.Reason)
	assert.Equal(t, "final answer", res.Message.Content)
	assert.Equal(t, store.RoleAssistant, res.Message.Role)
	assert.Equal(t, 0, res.Iterations)

	tail, err := f.stores.Messages.Tail(context.Background(), "thr_1", 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "final answer", tail[0].Content)
}

func TestStepGeneratesNewTraceIDWhenNoneProvided(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", content: "ok"}
	f := newFixture(t, primary, &fakeProvider{name: "local"}, nil)
	mustCreateThread(t, f.stores, "thr_1", []string{"agt_1"})
	mustPutAgent(f.stores, store.AgentBundle{ID: "agt_1", RiskTier: "low", MaxActionsPerStep: 1})

	res, err := f.orch.Step(context.Background(), StepInput{ThreadID: "thr_1", AgentID: "agt_1", TriggerText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StepReasonCompleted, res.Reason)
}

func TestStepBothProvidersFailProducesPlaceholderErrorMessage(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: errors.New("primary down")}
	fallback := &fakeProvider{name: "local", err: errors.New("fallback down")}
	f := newFixture(t, primary, fallback, nil)
	mustCreateThread(t, f.stores, "thr_1", []string{"agt_1"})
	mustPutAgent(f.stores, store.AgentBundle{ID: "agt_1", RiskTier: "low", MaxActionsPerStep: 1})

	res, err := f.orch.Step(context.Background(), StepInput{ThreadID: "thr_1", AgentID: "agt_1", TriggerText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StepReasonError, res.Reason)
	assert.Contains(t, res.Message.Content, "couldn't complete this request")
	assert.Contains(t, res.Message.Content, protocol.ReasonProviderErrorTerminalSynthesis)
}

func TestStepMaxActionsPerStepTriggersTerminalSynthesis(t *testing.T) {
	toolCallResp := providers.GenerateResponse{
		ToolCalls: []providers.ToolCall{
			{ID: "call_1", Name: "search", Arguments: map[string]any{}},
			{ID: "call_2", Name: "search", Arguments: map[string]any{}},
		},
	}
	scripted := &scriptedProvider{
		name: "anthropic",
		responses: []providers.GenerateResponse{
			toolCallResp,
			{Content: "closing summary", FinishReason: "stop"},
		},
	}
	f := newFixture(t, scripted, &fakeProvider{name: "local"}, nil)
	mustCreateThread(t, f.stores, "thr_1", []string{"agt_1"})
	mustPutAgent(f.stores, store.AgentBundle{ID: "agt_1", RiskTier: "high", MaxActionsPerStep: 1, AllowedTools: []string{"*"}})

	res, err := f.orch.Step(context.Background(), StepInput{ThreadID: "thr_1", AgentID: "agt_1", TriggerText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StepReasonMaxActionsPerStep, res.Reason)
	assert.Equal(t, "closing summary", res.Message.Content)
	assert.Equal(t, 2, res.Iterations)
}

func TestStepCancelledContextEmitsCancelledEventAndPersistsNoMessage(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", content: "should never be used"}
	f := newFixture(t, primary, &fakeProvider{name: "local"}, nil)
	mustCreateThread(t, f.stores, "thr_1", []string{"agt_1"})
	mustPutAgent(f.stores, store.AgentBundle{ID: "agt_1", RiskTier: "low", MaxActionsPerStep: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.orch.Step(ctx, StepInput{ThreadID: "thr_1", AgentID: "agt_1", TriggerText: "hi", TraceID: "trc_cancel"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StepReasonCancelled, res.Reason)
	assert.Equal(t, store.Message{}, res.Message)
	assert.Empty(t, primary.calls, "a cancelled step must never call the provider")

	tail, err := f.stores.Messages.Tail(context.Background(), "thr_1", 0)
	require.NoError(t, err)
	assert.Empty(t, tail, "a cancelled step must persist no assistant message")

	events, err := f.eventStore.Search(context.Background(), eventlog.Filters{TraceID: "trc_cancel", EventType: protocol.EventAgentStepCancelled}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestIsPrimaryChecksFirstActiveAgent(t *testing.T) {
	th := store.Thread{ActiveAgentSet: []string{"agt_1", "agt_2"}}
	assert.True(t, isPrimary(th, "agt_1"))
	assert.False(t, isPrimary(th, "agt_2"))
	assert.False(t, isPrimary(store.Thread{}, "agt_1"))
}

func TestToolVisibleWildcardAllowedTools(t *testing.T) {
	bundle := store.AgentBundle{ID: "agt_1", AllowedTools: []string{"*"}}
	caller := tools.Caller{PrincipalID: "agt_1", Permitted: func(string, string) bool { return false }}
	assert.True(t, toolVisible(bundle, caller, "search"))
}

func TestToolVisibleExplicitAllowedTools(t *testing.T) {
	bundle := store.AgentBundle{ID: "agt_1", AllowedTools: []string{"search"}}
	caller := tools.Caller{PrincipalID: "agt_1", Permitted: func(string, string) bool { return false }}
	assert.True(t, toolVisible(bundle, caller, "search"))
	assert.False(t, toolVisible(bundle, caller, "exec"))
}

func TestToolVisibleFallsBackToPermissionStore(t *testing.T) {
	bundle := store.AgentBundle{ID: "agt_1"}
	caller := tools.Caller{PrincipalID: "agt_1", Permitted: func(_, tool string) bool { return tool == "exec" }}
	assert.True(t, toolVisible(bundle, caller, "exec"))
	assert.False(t, toolVisible(bundle, caller, "search"))
}

func TestPlaceholderMessageIncludesTraceAndReason(t *testing.T) {
	msg := placeholderMessage("trc_1", "some_reason")
	assert.Contains(t, msg, "trc_1")
	assert.Contains(t, msg, "some_reason")
}
