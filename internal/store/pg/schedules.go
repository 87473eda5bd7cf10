package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// ScheduleStore implements store.ScheduleStore.
type ScheduleStore struct{ db *sql.DB }

func NewScheduleStore(db *sql.DB) *ScheduleStore { return &ScheduleStore{db: db} }

func (s *ScheduleStore) ListEnabled(ctx context.Context) ([]store.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cron_expr, thread_id, enabled, catchup_cap, last_dispatched
		FROM schedules WHERE enabled = true ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pg: list schedules: %w", err)
	}
	defer rows.Close()

	var out []store.Schedule
	for rows.Next() {
		var sc store.Schedule
		var threadID sql.NullString
		var lastDispatched sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.CronExpr, &threadID, &sc.Enabled, &sc.CatchupCap, &lastDispatched); err != nil {
			return nil, fmt.Errorf("pg: scan schedule: %w", err)
		}
		sc.ThreadID = threadID.String
		sc.LastDispatched = lastDispatched.Time
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (store.Schedule, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, cron_expr, thread_id, enabled, catchup_cap, last_dispatched
		FROM schedules WHERE id = $1`, id)
	var sc store.Schedule
	var threadID sql.NullString
	var lastDispatched sql.NullTime
	err := row.Scan(&sc.ID, &sc.CronExpr, &threadID, &sc.Enabled, &sc.CatchupCap, &lastDispatched)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Schedule{}, false, nil
	}
	if err != nil {
		return store.Schedule{}, false, fmt.Errorf("pg: get schedule: %w", err)
	}
	sc.ThreadID = threadID.String
	sc.LastDispatched = lastDispatched.Time
	return sc, true, nil
}

func (s *ScheduleStore) UpdateLastDispatched(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE schedules SET last_dispatched = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("pg: update schedule dispatch time: %w", err)
	}
	return nil
}
