// Package ingest is the channel-agnostic ingestion core described by
// the inbound channel adapter contract: given a channels.InboundPayload
// already parsed by some channels.Adapter, it inserts the
// external-delivery dedup record, resolves or creates the owning
// thread, persists the message, emits channel.inbound, and enqueues an
// agent_step task. A duplicate delivery short-circuits to a no-op that
// still reports success.
package ingest

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/channels"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/internal/taskrunner"
	"github.com/nextlevelbuilder/agentcore/internal/textutil"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

// Core wires the stores, event writer and task runner needed to turn a
// parsed inbound payload into thread state and a scheduled agent step.
type Core struct {
	Deliveries      store.DeliveryStore
	Threads         store.ThreadStore
	Messages        store.MessageStore
	Events          *eventlog.Writer
	Runner          *taskrunner.Runner
	MaxMessageChars int
}

func New(deliveries store.DeliveryStore, threads store.ThreadStore, messages store.MessageStore, events *eventlog.Writer, runner *taskrunner.Runner, maxMessageChars int) *Core {
	if maxMessageChars <= 0 {
		maxMessageChars = 32_000
	}
	return &Core{
		Deliveries:      deliveries,
		Threads:         threads,
		Messages:        messages,
		Events:          events,
		Runner:          runner,
		MaxMessageChars: maxMessageChars,
	}
}

// Result reports what Ingest did, mirroring the webhook response shape
// callers surface to the external sender (accepted=true, duplicate=bool).
type Result struct {
	Accepted  bool
	Duplicate bool
	ThreadID  string
	MessageID string
}

// Ingest processes one already-parsed inbound payload for channel.
// ownerUserID identifies the external sender for thread ownership.
func (c *Core) Ingest(ctx context.Context, channel string, ownerUserID string, payload channels.InboundPayload) (Result, error) {
	traceID := idgen.Trace()
	rootSpan := idgen.Span()

	inserted, err := c.Deliveries.Insert(ctx, store.ExternalDelivery{
		ID:         idgen.Event(),
		Channel:    channel,
		ExternalID: payload.ExternalID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ingest: insert delivery record: %w", err)
	}
	if !inserted {
		return Result{Accepted: true, Duplicate: true}, nil
	}

	thread, err := c.resolveThread(ctx, ownerUserID, channel)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: resolve thread: %w", err)
	}

	content := textutil.Truncate(payload.Content, c.MaxMessageChars)
	msg := store.Message{
		ID:                 idgen.Message(),
		ThreadID:           thread.ID,
		Role:               store.RoleUser,
		Content:            content,
		ExternalDeliveryID: payload.ExternalID,
	}
	if payload.Media != nil {
		msg.MediaRef = payload.Media.URL
		msg.MediaMIME = payload.Media.MIME
	}
	if err := c.Messages.Create(ctx, msg); err != nil {
		return Result{}, fmt.Errorf("ingest: persist message: %w", err)
	}

	_, _ = c.Events.Emit(ctx, protocol.EventChannelInbound, "ingest",
		eventlog.Actor{Kind: "user", ID: ownerUserID},
		map[string]any{
			"channel":     channel,
			"external_id": payload.ExternalID,
			"message_id":  msg.ID,
		}, traceID, rootSpan, "", thread.ID)

	if _, err := c.Runner.Enqueue(ctx, taskrunner.LaneAgentPriority, taskrunner.HandlerAgentStep,
		map[string]any{"message_id": msg.ID, "source": "inbound"},
		traceID, rootSpan, thread.ID, thread.ID); err != nil {
		return Result{}, fmt.Errorf("ingest: enqueue agent_step: %w", err)
	}

	return Result{Accepted: true, ThreadID: thread.ID, MessageID: msg.ID}, nil
}

// resolveThread finds the owner's open thread for channel, creating
// one on first contact. A thread's ownership never changes once
// created (§3 invariant 4): this is the only path that assigns it.
func (c *Core) resolveThread(ctx context.Context, ownerUserID, channel string) (store.Thread, error) {
	existing, ok, err := c.Threads.FindOpenByOwnerChannel(ctx, ownerUserID, channel)
	if err != nil {
		return store.Thread{}, err
	}
	if ok {
		return existing, nil
	}

	t := store.Thread{
		ID:          idgen.Thread(),
		OwnerUserID: ownerUserID,
		ChannelType: channel,
	}
	if err := c.Threads.Create(ctx, t); err != nil {
		return store.Thread{}, err
	}
	return t, nil
}
