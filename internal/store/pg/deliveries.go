package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// DeliveryStore implements store.DeliveryStore. (channel, external_id)
// carries a unique index; ON CONFLICT DO NOTHING turns a duplicate
// delivery into a detectable no-op.
type DeliveryStore struct{ db *sql.DB }

func NewDeliveryStore(db *sql.DB) *DeliveryStore { return &DeliveryStore{db: db} }

func (s *DeliveryStore) Insert(ctx context.Context, d store.ExternalDelivery) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO external_deliveries (id, channel, external_id, thread_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (channel, external_id) DO NOTHING`,
		d.ID, d.Channel, d.ExternalID, d.ThreadID, d.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("pg: insert delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pg: insert delivery rows affected: %w", err)
	}
	return n > 0, nil
}
