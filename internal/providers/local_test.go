package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body localChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "local-fallback", body.Model)

		_ = json.NewEncoder(w).Encode(localChatResponse{
			Choices: []struct {
				Message      localChatMessage `json:"message"`
				FinishReason string           `json:"finish_reason"`
			}{
				{Message: localChatMessage{Role: "assistant", Content: "hello there"}, FinishReason: "stop"},
			},
		})
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "local-fallback")
	resp, err := p.Generate(context.Background(), GenerateRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestLocalProviderGenerateNonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "local-fallback")
	_, err := p.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
}

func TestLocalProviderGenerateEmptyChoicesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(localChatResponse{})
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "local-fallback")
	_, err := p.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
}

func TestLocalProviderHealthCheckOKOnNon5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "local-fallback")
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestLocalProviderHealthCheckFailsOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "local-fallback")
	assert.Error(t, p.HealthCheck(context.Background()))
}

func TestLocalProviderNameIsLocal(t *testing.T) {
	assert.Equal(t, "local", NewLocalProvider("http://example.invalid", "m").Name())
}
