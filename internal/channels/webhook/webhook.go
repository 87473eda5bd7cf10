// Package webhook is the reference channel adapter: a generic
// HTTP-webhook-shaped channel used to exercise the ingestion contract
// in tests. It is not a real messaging integration — the routing
// surface that would receive these payloads over HTTP is out of
// scope, so this adapter only implements the parse/send halves of the
// contract and is driven directly by callers (tests, internal/ingest).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/channels"
)

// inboundEnvelope is the JSON shape this adapter accepts on the wire.
// Kind distinguishes a routable message from an acknowledged no-op
// (receipt, reaction, status).
type inboundEnvelope struct {
	Kind       string `json:"kind"`
	ExternalID string `json:"external_id"`
	Sender     string `json:"sender"`
	ThreadKey  string `json:"thread_key"`
	Content    string `json:"content"`
	MediaURL   string `json:"media_url,omitempty"`
	MediaMIME  string `json:"media_mime,omitempty"`
}

// outboundEnvelope is the JSON body posted to the configured endpoint
// on Send.
type outboundEnvelope struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaMIME string `json:"media_mime,omitempty"`
}

const maxSendAttempts = 3

// Adapter implements channels.Adapter and channels.Sender against a
// single configured outbound endpoint.
type Adapter struct {
	Endpoint string
	client   *http.Client
}

func New(endpoint string) *Adapter {
	return &Adapter{Endpoint: endpoint, client: &http.Client{Timeout: 10 * time.Second}}
}

func (a *Adapter) Name() string { return "webhook" }

// ParseInbound decodes raw as an inboundEnvelope. Kinds other than
// "message" are recognized no-ops: routable is false and err is nil.
func (a *Adapter) ParseInbound(raw []byte) (channels.InboundPayload, bool, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return channels.InboundPayload{}, false, fmt.Errorf("webhook: decode inbound payload: %w", err)
	}
	if env.Kind != "message" {
		return channels.InboundPayload{}, false, nil
	}
	if env.ExternalID == "" || env.ThreadKey == "" {
		return channels.InboundPayload{}, false, fmt.Errorf("webhook: message payload missing external_id or thread_key")
	}

	payload := channels.InboundPayload{
		ExternalID: env.ExternalID,
		Sender:     env.Sender,
		ThreadKey:  env.ThreadKey,
		Content:    env.Content,
	}
	if env.MediaURL != "" {
		payload.Media = &channels.MediaRef{URL: env.MediaURL, MIME: env.MediaMIME}
	}
	return payload, true, nil
}

// Send posts msg to the configured endpoint, retrying on 5xx/429 with
// exponential backoff plus jitter up to maxSendAttempts. A non-retryable
// response or an exhausted retry budget returns an error to the caller,
// who is responsible for emitting channel.outbound.failed and
// dead-lettering.
func (a *Adapter) Send(ctx context.Context, msg channels.OutboundMessage) error {
	body, err := json.Marshal(outboundEnvelope{
		ThreadID:  msg.ThreadID,
		MessageID: msg.MessageID,
		Content:   msg.Content,
		MediaURL:  mediaURL(msg.Media),
		MediaMIME: mediaMIME(msg.Media),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal outbound payload: %w", err)
	}

	backoff := time.Second
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		attempts = attempt
		err := a.attemptSend(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxSendAttempts {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("webhook: send failed after %d attempts: %w", attempts, lastErr)
}

type retryableError struct{ status int }

func (e *retryableError) Error() string { return fmt.Sprintf("webhook: retryable status %d", e.status) }

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

func (a *Adapter) attemptSend(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &retryableError{status: 0}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &retryableError{status: resp.StatusCode}
	}
	return fmt.Errorf("webhook: non-retryable status %d", resp.StatusCode)
}

func mediaURL(m *channels.MediaRef) string {
	if m == nil {
		return ""
	}
	return m.URL
}

func mediaMIME(m *channels.MediaRef) string {
	if m == nil {
		return ""
	}
	return m.MIME
}
