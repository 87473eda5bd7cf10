package ingest

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/channels"
	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
	"github.com/nextlevelbuilder/agentcore/internal/taskrunner"
)

func newTestCore(t *testing.T) (*Core, *eventlog.Writer, *taskrunner.Runner) {
	t.Helper()
	events := eventlog.NewWriter(memstore.NewEventStore(), true)
	runner := taskrunner.New(config.TaskRunnerConfig{
		Lanes: map[string]config.LaneConfig{
			taskrunner.LaneAgentPriority: {Capacity: 64, Workers: 4},
		},
	}, events, prometheus.NewRegistry())
	runner.Start(context.Background())
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })
	runner.RegisterHandler(taskrunner.HandlerAgentStep, taskrunner.HandlerSpec{
		Handler: func(ctx context.Context, task *taskrunner.Task) error { return nil },
	})

	core := New(memstore.NewDeliveryStore(), memstore.NewThreadStore(), memstore.NewMessageStore(), events, runner, 0)
	return core, events, runner
}

func TestIngest_NewMessageCreatesThreadAndEnqueuesStep(t *testing.T) {
	core, events, _ := newTestCore(t)

	res, err := core.Ingest(context.Background(), "whatsapp", "user_1", channels.InboundPayload{
		ExternalID: "wa:msgid-ABC",
		Sender:     "user_1",
		ThreadKey:  "user_1",
		Content:    "hello",
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.Duplicate)
	assert.NotEmpty(t, res.ThreadID)
	assert.NotEmpty(t, res.MessageID)

	evs, err := events.Search(context.Background(), eventlog.Filters{EventType: "channel.inbound"}, eventlog.Bounds{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "wa:msgid-ABC", evs[0].Payload["external_id"])
}

func TestIngest_DuplicateDeliveryIsNoop(t *testing.T) {
	core, events, _ := newTestCore(t)

	_, err := core.Ingest(context.Background(), "whatsapp", "user_1", channels.InboundPayload{
		ExternalID: "wa:msgid-ABC", ThreadKey: "user_1", Content: "hello",
	})
	require.NoError(t, err)

	res, err := core.Ingest(context.Background(), "whatsapp", "user_1", channels.InboundPayload{
		ExternalID: "wa:msgid-ABC", ThreadKey: "user_1", Content: "hello again",
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.Duplicate)

	evs, err := events.Search(context.Background(), eventlog.Filters{EventType: "channel.inbound"}, eventlog.Bounds{})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestIngest_SecondMessageReusesOpenThread(t *testing.T) {
	core, _, _ := newTestCore(t)

	first, err := core.Ingest(context.Background(), "whatsapp", "user_1", channels.InboundPayload{
		ExternalID: "wa:1", ThreadKey: "user_1", Content: "hi",
	})
	require.NoError(t, err)

	second, err := core.Ingest(context.Background(), "whatsapp", "user_1", channels.InboundPayload{
		ExternalID: "wa:2", ThreadKey: "user_1", Content: "again",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ThreadID, second.ThreadID)
}
