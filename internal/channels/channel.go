// Package channels defines the adapter contract between an external
// messaging surface and the ingestion core: an Adapter turns a raw
// inbound payload into a routable message or a recognized no-op, and a
// Sender delivers an outbound message back to the channel. The
// channel-specific wire formats themselves (Telegram, Discord,
// WhatsApp, ...) are out of scope; this package ships the interfaces
// plus one reference adapter (webhook/) built on stdlib net/http that
// exercises the contract in tests.
package channels

import "context"

// MediaRef is an optional media attachment on an inbound or outbound
// message.
type MediaRef struct {
	URL  string
	MIME string
}

// InboundPayload is the normalized shape an Adapter extracts from a
// raw channel payload.
type InboundPayload struct {
	ExternalID string
	Sender     string
	ThreadKey  string
	Content    string
	Media      *MediaRef
}

// Adapter accepts a raw payload and classifies it. Routable reports
// whether the payload is a message the ingestion core should process;
// when false, the payload was a recognized no-op (receipt, reaction,
// status) that should be acknowledged but produces no work.
type Adapter interface {
	Name() string
	ParseInbound(raw []byte) (payload InboundPayload, routable bool, err error)
}

// OutboundMessage is what the ingestion core hands to a Sender once an
// orchestrator step produces a terminal assistant message.
type OutboundMessage struct {
	ThreadID  string
	MessageID string
	Content   string
	Media     *MediaRef
}

// Sender delivers an outbound message to a channel. Implementations
// retry on 5xx/429 with backoff and surface a permanent error for
// anything else.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg OutboundMessage) error
}
