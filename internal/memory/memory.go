// Package memory declares the contract the orchestrator depends on for
// thread summaries, active state items, and semantic retrieval. A
// concrete backend is deliberately out of scope here: the orchestrator
// treats degraded results as non-fatal and proceeds.
package memory

import (
	"context"
	"time"
)

// Summary is the result of ThreadSummary.
type Summary struct {
	Short         string
	Long          string
	LastUpdatedAt time.Time
}

// RetrievedChunk is one scored, attributed piece of retrieved context.
type RetrievedChunk struct {
	Text       string
	Score      float64
	Provenance string
}

// BlendParams weights the semantic-vs-recency retrieval score (70%
// semantic similarity + 30% recency-decay blend by default).
type BlendParams struct {
	SemanticWeight float64
	RecencyWeight  float64
}

// StateItemType enumerates the active-state-item kinds the orchestrator
// sorts by priority (decision > constraint > action > risk >
// question).
type StateItemType string

const (
	StateDecision  StateItemType = "decision"
	StateConstraint StateItemType = "constraint"
	StateAction    StateItemType = "action"
	StateRisk      StateItemType = "risk"
	StateQuestion  StateItemType = "question"
)

// StateItem is one line of the orchestrator's structured state block.
type StateItem struct {
	Type          StateItemType
	Status        string
	TopicTag      string
	Text          string
	Pinned        bool
	Confidence    float64
	ReferenceCount int
	Conflict      bool
	LastSeen      time.Time
}

// Interface is the four operations the orchestrator consumes.
// Implementations may call out to a vector store, an LLM summarizer, or
// any other backend; none of that is constrained here.
type Interface interface {
	ThreadSummary(ctx context.Context, threadID string) (Summary, error)
	Retrieve(ctx context.Context, threadID, query string, k int, blend BlendParams) ([]RetrievedChunk, error)
	ActiveStateItems(ctx context.Context, threadID, agentID string) ([]StateItem, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NullMemory is a degraded-by-design implementation: every call returns
// an empty/stale result rather than an error. It is useful for
// standalone mode and as a safe zero value while a real backend is
// being wired in.
type NullMemory struct{}

func (NullMemory) ThreadSummary(context.Context, string) (Summary, error) { return Summary{}, nil }
func (NullMemory) Retrieve(context.Context, string, string, int, BlendParams) ([]RetrievedChunk, error) {
	return nil, nil
}
func (NullMemory) ActiveStateItems(context.Context, string, string) ([]StateItem, error) {
	return nil, nil
}
func (NullMemory) Embed(context.Context, string) ([]float32, error) { return nil, nil }
