package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", TraceIDFromContext(ctx))

	ctx = WithTraceID(ctx, "trc_123")
	assert.Equal(t, "trc_123", TraceIDFromContext(ctx))
}

func TestParentSpanIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", ParentSpanIDFromContext(ctx))

	ctx = WithParentSpanID(ctx, "spn_root")
	assert.Equal(t, "spn_root", ParentSpanIDFromContext(ctx))
}

func TestStartSpanNestsUnderCurrentParent(t *testing.T) {
	ctx := WithParentSpanID(context.Background(), "spn_parent")

	childCtx, spanID, parentSpanID := StartSpan(ctx)
	assert.NotEmpty(t, spanID)
	assert.Equal(t, "spn_parent", parentSpanID)
	assert.Equal(t, spanID, ParentSpanIDFromContext(childCtx))

	_, grandchildSpanID, grandchildParentID := StartSpan(childCtx)
	assert.Equal(t, spanID, grandchildParentID)
	assert.NotEqual(t, spanID, grandchildSpanID)
}

func TestCollectorFromContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CollectorFromContext(ctx))

	c := &Collector{}
	ctx = WithCollector(ctx, c)
	assert.Same(t, c, CollectorFromContext(ctx))
}

func TestNewCollectorEmitsToEventLog(t *testing.T) {
	store := memstore.NewEventStore()
	writer := eventlog.NewWriter(store, true)
	actor := eventlog.Actor{Kind: "system", ID: "orchestrator"}
	c := NewCollector(writer, actor, "orchestrator", nil)

	ctx := WithTraceID(context.Background(), "trc_abc")
	c.Emit(ctx, "spn_1", "", "orchestrator.step", map[string]any{"thread_id": "thr_1", "iteration": 1}, nil)

	events, err := store.Search(context.Background(), eventlog.Filters{TraceID: "trc_abc"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "orchestrator.step", events[0].EventType)
	assert.Equal(t, "thr_1", events[0].ThreadID)
	assert.NotContains(t, events[0].Payload, "thread_id")
}

func TestNewCollectorRecordsErrorAttribute(t *testing.T) {
	store := memstore.NewEventStore()
	writer := eventlog.NewWriter(store, true)
	c := NewCollector(writer, eventlog.Actor{Kind: "system", ID: "tools"}, "tools", nil)

	ctx := WithTraceID(context.Background(), "trc_err")
	c.Emit(ctx, "spn_1", "", "tool.exec.failed", nil, errors.New("sandbox denied"))

	events, err := store.Search(context.Background(), eventlog.Filters{TraceID: "trc_err"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sandbox denied", events[0].Payload["error"])
}

func TestNewCollectorSkipsEmitWithoutTraceID(t *testing.T) {
	store := memstore.NewEventStore()
	writer := eventlog.NewWriter(store, true)
	c := NewCollector(writer, eventlog.Actor{Kind: "system", ID: "tools"}, "tools", nil)

	c.Emit(context.Background(), "spn_1", "", "tool.exec.failed", nil, nil)

	events, err := store.Search(context.Background(), eventlog.Filters{}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, events)
}
