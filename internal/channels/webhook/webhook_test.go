package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentcore/internal/channels"
)

func TestParseInbound_RoutableMessage(t *testing.T) {
	a := New("http://example.invalid")
	raw := []byte(`{"kind":"message","external_id":"wa:1","sender":"u1","thread_key":"u1","content":"hi"}`)

	payload, routable, err := a.ParseInbound(raw)
	require.NoError(t, err)
	assert.True(t, routable)
	assert.Equal(t, "wa:1", payload.ExternalID)
	assert.Equal(t, "hi", payload.Content)
}

func TestParseInbound_NonMessageKindIsNoop(t *testing.T) {
	a := New("http://example.invalid")
	raw := []byte(`{"kind":"receipt","external_id":"wa:1"}`)

	_, routable, err := a.ParseInbound(raw)
	require.NoError(t, err)
	assert.False(t, routable)
}

func TestParseInbound_MissingFieldsIsError(t *testing.T) {
	a := New("http://example.invalid")
	raw := []byte(`{"kind":"message","content":"hi"}`)

	_, _, err := a.ParseInbound(raw)
	assert.Error(t, err)
}

func TestSend_RetriesOn503ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(srv.URL)
	err := a.Send(context.Background(), channels.OutboundMessage{ThreadID: "thr_1", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := New(srv.URL)
	err := a.Send(context.Background(), channels.OutboundMessage{ThreadID: "thr_1", Content: "hi"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
