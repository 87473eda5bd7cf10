package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

func TestDeciderRecordsAllowDecision(t *testing.T) {
	store := memstore.NewEventStore()
	writer := eventlog.NewWriter(store, true)
	d := NewDecider(New(nil), writer)

	decision := d.Decide(context.Background(), baseContext(), "trc_1", "spn_1", "")
	assert.True(t, decision.Allowed)

	events, err := store.Search(context.Background(), eventlog.Filters{TraceID: "trc_1"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventPolicyDecision, events[0].EventType)
	assert.Equal(t, true, events[0].Payload["allowed"])
	assert.NotContains(t, events[0].Payload, "reason")
}

func TestDeciderRecordsDenyReason(t *testing.T) {
	store := memstore.NewEventStore()
	writer := eventlog.NewWriter(store, true)
	d := NewDecider(New(nil), writer)

	c := baseContext()
	c.SystemState.Restarting = true
	decision := d.Decide(context.Background(), c, "trc_2", "spn_1", "")
	assert.False(t, decision.Allowed)

	events, err := store.Search(context.Background(), eventlog.Filters{TraceID: "trc_2"}, eventlog.Bounds{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "restarting", events[0].Payload["reason"])
	assert.Equal(t, "R2", events[0].Payload["rule"])
}
