package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
)

type fakeProvider struct {
	name        string
	genErr      error
	genResp     *GenerateResponse
	healthErr   error
	healthCalls int
	genCalls    int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	f.genCalls++
	if f.genErr != nil {
		return nil, f.genErr
	}
	return f.genResp, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) error {
	f.healthCalls++
	return f.healthErr
}

func newTestRouter(t *testing.T, primary, fallback Provider) (*Router, *memstore.EventStore) {
	t.Helper()
	store := memstore.NewEventStore()
	events := eventlog.NewWriter(store, true)
	return NewRouter(primary, fallback, events, time.Minute, time.Minute), store
}

func TestRouterGenerateUsesPrimaryOnSuccess(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", genResp: &GenerateResponse{Content: "hi", FinishReason: "stop"}}
	fallback := &fakeProvider{name: "local"}
	r, eventStore := newTestRouter(t, primary, fallback)

	resp, err := r.Generate(context.Background(), GenerateRequest{}, "trc_1", "spn_1", "", "thr_1")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, 1, primary.genCalls)
	assert.Equal(t, 0, fallback.genCalls)

	events, err := eventStore.Search(context.Background(), eventlog.Filters{TraceID: "trc_1"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, events, 2) // run.start, run.end
}

func TestRouterGenerateFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", genErr: errors.New("primary down")}
	fallback := &fakeProvider{name: "local", genResp: &GenerateResponse{Content: "fallback response", FinishReason: "stop"}}
	r, eventStore := newTestRouter(t, primary, fallback)

	resp, err := r.Generate(context.Background(), GenerateRequest{}, "trc_1", "spn_1", "", "thr_1")
	require.NoError(t, err)
	assert.Equal(t, "fallback response", resp.Content)
	assert.Equal(t, 1, fallback.genCalls)

	events, err := eventStore.Search(context.Background(), eventlog.Filters{TraceID: "trc_1", EventType: "model.fallback"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "anthropic", events[0].Payload["from"])
	assert.Equal(t, "local", events[0].Payload["to"])
}

func TestRouterGenerateReturnsRouterErrorWhenBothFail(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", genErr: errors.New("primary down")}
	fallback := &fakeProvider{name: "local", genErr: errors.New("fallback down")}
	r, _ := newTestRouter(t, primary, fallback)

	_, err := r.Generate(context.Background(), GenerateRequest{}, "trc_1", "spn_1", "", "thr_1")
	require.Error(t, err)
	var routerErr *RouterError
	require.ErrorAs(t, err, &routerErr)
	assert.Equal(t, OutageUnknown, routerErr.Kind)
}

func TestRouterHealthCheckCachesWithinTTL(t *testing.T) {
	p := &fakeProvider{name: "anthropic"}
	store := memstore.NewEventStore()
	events := eventlog.NewWriter(store, true)
	r := NewRouter(p, &fakeProvider{name: "local"}, events, time.Hour, time.Minute)

	assert.True(t, r.HealthCheck(context.Background(), p))
	assert.True(t, r.HealthCheck(context.Background(), p))
	assert.Equal(t, 1, p.healthCalls, "second call within TTL must hit the cache")
}

func TestRouterHealthCheckRefreshesAfterTTLExpires(t *testing.T) {
	p := &fakeProvider{name: "anthropic"}
	store := memstore.NewEventStore()
	events := eventlog.NewWriter(store, true)
	r := NewRouter(p, &fakeProvider{name: "local"}, events, time.Nanosecond, time.Minute)

	assert.True(t, r.HealthCheck(context.Background(), p))
	time.Sleep(time.Millisecond)
	assert.True(t, r.HealthCheck(context.Background(), p))
	assert.Equal(t, 2, p.healthCalls)
}
