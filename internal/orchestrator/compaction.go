package orchestrator

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// maybeCompact enqueues a compaction task every N messages (all roles)
// per thread, where N is the thread's own compaction_threshold
// if set, falling back to the orchestrator's configured default.
func (o *Orchestrator) maybeCompact(ctx context.Context, thread store.Thread) {
	if o.EnqueueCompaction == nil {
		return
	}
	threshold := thread.CompactionThreshold
	if threshold <= 0 {
		threshold = o.cfg.CompactionEveryN
	}
	if threshold <= 0 {
		return
	}

	count, err := o.stores.Messages.CountSince(ctx, thread.ID, "")
	if err != nil {
		slog.Warn("orchestrator.compaction_count_failed", "thread_id", thread.ID, "error", err)
		return
	}
	if count == 0 || count%threshold != 0 {
		return
	}
	if err := o.EnqueueCompaction(ctx, thread.ID); err != nil {
		slog.Warn("orchestrator.compaction_enqueue_failed", "thread_id", thread.ID, "error", err)
	}
}
