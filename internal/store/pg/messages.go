package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// MessageStore implements store.MessageStore against Postgres. Rows are
// immutable once inserted; there is no Update path.
type MessageStore struct{ db *sql.DB }

func NewMessageStore(db *sql.DB) *MessageStore { return &MessageStore{db: db} }

func (s *MessageStore) Create(ctx context.Context, m store.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, media_ref, media_mime, created_at, external_delivery_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.ThreadID, m.Role, m.Content, m.MediaRef, m.MediaMIME, m.CreatedAt, m.ExternalDeliveryID,
	)
	if err != nil {
		return fmt.Errorf("pg: create message: %w", err)
	}
	return nil
}

// Tail returns the last n messages of a thread ordered by (created_at,
// id) ascending, per the ordering rule.
func (s *MessageStore) Tail(ctx context.Context, threadID string, n int) ([]store.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, role, content, media_ref, media_mime, created_at, external_delivery_id
		FROM (
			SELECT * FROM messages WHERE thread_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		) recent ORDER BY created_at ASC, id ASC`, threadID, n)
	if err != nil {
		return nil, fmt.Errorf("pg: tail messages: %w", err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.MediaRef, &m.MediaMIME, &m.CreatedAt, &m.ExternalDeliveryID); err != nil {
			return nil, fmt.Errorf("pg: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MessageStore) CountSince(ctx context.Context, threadID string, sinceMessageID string) (int, error) {
	var count int
	var err error
	if sinceMessageID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE thread_id = $1`, threadID).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT count(*) FROM messages
			WHERE thread_id = $1 AND (created_at, id) > (
				SELECT created_at, id FROM messages WHERE id = $2
			)`, threadID, sinceMessageID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("pg: count messages since: %w", err)
	}
	return count, nil
}
