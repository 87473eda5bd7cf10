package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// DispatchStore implements store.DispatchStore. (schedule_id, due_at)
// carries a unique index; its insertion IS the idempotency marker, so
// there is deliberately no separate lock table.
type DispatchStore struct{ db *sql.DB }

func NewDispatchStore(db *sql.DB) *DispatchStore { return &DispatchStore{db: db} }

func (s *DispatchStore) Insert(ctx context.Context, d store.ScheduleDispatch) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_dispatches (schedule_id, due_at)
		VALUES ($1,$2)
		ON CONFLICT (schedule_id, due_at) DO NOTHING`,
		d.ScheduleID, d.DueAt,
	)
	if err != nil {
		return false, fmt.Errorf("pg: insert dispatch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pg: insert dispatch rows affected: %w", err)
	}
	return n > 0, nil
}
