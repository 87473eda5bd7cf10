package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// ThreadStore implements store.ThreadStore against Postgres.
type ThreadStore struct{ db *sql.DB }

func NewThreadStore(db *sql.DB) *ThreadStore { return &ThreadStore{db: db} }

func (s *ThreadStore) Create(ctx context.Context, t store.Thread) error {
	agents, _ := json.Marshal(t.ActiveAgentSet)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, owner_user_id, channel_type, active_agent_set, compaction_threshold, closed, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.OwnerUserID, t.ChannelType, agents, t.CompactionThreshold, t.Closed, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: create thread: %w", err)
	}
	return nil
}

func (s *ThreadStore) Get(ctx context.Context, id string) (store.Thread, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, channel_type, active_agent_set, compaction_threshold, closed, created_at, updated_at
		FROM threads WHERE id = $1`, id)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Thread{}, false, nil
	}
	if err != nil {
		return store.Thread{}, false, fmt.Errorf("pg: get thread: %w", err)
	}
	return t, true, nil
}

func (s *ThreadStore) FindOpenByOwnerChannel(ctx context.Context, ownerUserID, channelType string) (store.Thread, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, channel_type, active_agent_set, compaction_threshold, closed, created_at, updated_at
		FROM threads WHERE owner_user_id = $1 AND channel_type = $2 AND closed = false
		ORDER BY created_at DESC LIMIT 1`, ownerUserID, channelType)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Thread{}, false, nil
	}
	if err != nil {
		return store.Thread{}, false, fmt.Errorf("pg: find open thread: %w", err)
	}
	return t, true, nil
}

func (s *ThreadStore) Close(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE threads SET closed = true, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pg: close thread: %w", err)
	}
	return nil
}

func (s *ThreadStore) Update(ctx context.Context, t store.Thread) error {
	agents, _ := json.Marshal(t.ActiveAgentSet)
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads SET active_agent_set=$2, compaction_threshold=$3, closed=$4, updated_at=$5
		WHERE id = $1`, t.ID, agents, t.CompactionThreshold, t.Closed, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: update thread: %w", err)
	}
	return nil
}

func scanThread(row *sql.Row) (store.Thread, error) {
	var t store.Thread
	var agentsJSON []byte
	if err := row.Scan(&t.ID, &t.OwnerUserID, &t.ChannelType, &agentsJSON, &t.CompactionThreshold, &t.Closed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return store.Thread{}, err
	}
	_ = json.Unmarshal(agentsJSON, &t.ActiveAgentSet)
	return t, nil
}
