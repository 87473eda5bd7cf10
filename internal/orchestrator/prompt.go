package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/agentcore/internal/memory"
	"github.com/nextlevelbuilder/agentcore/internal/providers"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/internal/textutil"
)

// assemble builds the prompt in a fixed six-part order (system context,
// pinned skills, rolling summary, active state, retrieved chunks, recent
// tail), compressing sections in reverse priority when the assembled
// token estimate exceeds the thread's provider budget.
func (o *Orchestrator) assemble(ctx context.Context, thread store.Thread, bundle store.AgentBundle, triggerText string) ([]providers.Message, error) {
	budget := o.providersCfg.Primary.TokenBudget
	if budget <= 0 {
		budget = 150_000
	}

	systemContext := bundle.Identity + "\n\n" + bundle.Persona

	var skills string
	if len(bundle.PinnedSkills) > 0 {
		skills = "Pinned skills:\n" + strings.Join(bundle.PinnedSkills, "\n---\n")
	}

	summary, err := o.memory.ThreadSummary(ctx, thread.ID)
	if err != nil {
		summary = memory.Summary{}
	}

	stateItems, err := o.memory.ActiveStateItems(ctx, thread.ID, bundle.ID)
	if err != nil {
		stateItems = nil
	}
	stateBlock := renderStateBlock(stateItems)
	if stateBlock == "" {
		stateBlock = summary.Long
	}

	topK := o.cfg.RetrievalTopK
	if topK <= 0 {
		topK = 8
	}
	blend := memory.BlendParams{SemanticWeight: o.cfg.SemanticWeight, RecencyWeight: o.cfg.RecencyWeight}
	chunks, err := o.memory.Retrieve(ctx, thread.ID, triggerText, topK, blend)
	if err != nil {
		chunks = nil
	}

	recentTurns := o.cfg.RecentTurns
	if recentTurns <= 0 {
		recentTurns = 12
	}
	tail, err := o.stores.Messages.Tail(ctx, thread.ID, recentTurns)
	if err != nil {
		tail = nil
	}

	// Shed sections in reverse priority until the estimate fits, never
	// touching the short summary or system context.
	usedLongSummary := stateBlock == summary.Long && summary.Long != ""
	for fits := false; !fits; {
		estimate := textutil.EstimateTokens(systemContext, skills, summary.Short, stateBlock, renderChunks(chunks), renderTail(tail))
		switch {
		case estimate <= budget:
			fits = true
		case len(chunks) > 0:
			chunks = nil
		case usedLongSummary:
			stateBlock = ""
			usedLongSummary = false
		case stateBlock != "":
			shrunk := textutil.Truncate(stateBlock, len(stateBlock)/2) + "\n[state truncated for budget]"
			if len(shrunk) >= len(stateBlock) {
				shrunk = ""
			}
			stateBlock = shrunk
		default:
			fits = true
		}
	}

	var messages []providers.Message
	messages = append(messages, providers.Message{Role: "system", Content: systemContext})
	if skills != "" {
		messages = append(messages, providers.Message{Role: "system", Content: skills})
	}
	if summary.Short != "" {
		messages = append(messages, providers.Message{Role: "user", Content: "[Conversation summary]\n" + summary.Short})
	}
	if stateBlock != "" {
		messages = append(messages, providers.Message{Role: "user", Content: "[Active state]\n" + stateBlock})
	}
	if rendered := renderChunks(chunks); rendered != "" {
		messages = append(messages, providers.Message{Role: "user", Content: "[Retrieved context]\n" + rendered})
	}
	for _, m := range tail {
		messages = append(messages, providers.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: triggerText})

	return messages, nil
}

// renderStateBlock formats the structured state block: one line per
// item with type, status, topic tag, reference count, and a CONFLICT
// marker when flagged, sorted pinned-first / type priority / confidence
// / recency.
func renderStateBlock(items []memory.StateItem) string {
	if len(items) == 0 {
		return ""
	}
	sorted := make([]memory.StateItem, len(items))
	copy(sorted, items)
	memory.SortForPrompt(sorted)

	var b strings.Builder
	for _, it := range sorted {
		conflict := ""
		if it.Conflict {
			conflict = " CONFLICT"
		}
		fmt.Fprintf(&b, "[%s/%s] (%s) refs=%d%s: %s\n", it.Type, it.Status, it.TopicTag, it.ReferenceCount, conflict, it.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderChunks(chunks []memory.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "(%.2f, %s) %s\n", c.Score, c.Provenance, c.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTail(tail []store.Message) string {
	var b strings.Builder
	for _, m := range tail {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
