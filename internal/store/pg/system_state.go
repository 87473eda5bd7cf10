package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// SystemStateStore implements store.SystemStateStore against the
// singleton system_state row. The row is seeded by migration
// and always has exactly one id=1 entry.
type SystemStateStore struct{ db *sql.DB }

func NewSystemStateStore(db *sql.DB) *SystemStateStore { return &SystemStateStore{db: db} }

func (s *SystemStateStore) Get(ctx context.Context) (store.SystemState, error) {
	var st store.SystemState
	var unlockTTL sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT lockdown, restarting, unlock_code, unlock_code_ttl FROM system_state WHERE id = 1`,
	).Scan(&st.Lockdown, &st.Restarting, &st.UnlockCode, &unlockTTL)
	if err != nil {
		return store.SystemState{}, fmt.Errorf("pg: get system state: %w", err)
	}
	st.UnlockCodeTTL = unlockTTL.Time
	return st, nil
}

func (s *SystemStateStore) Set(ctx context.Context, st store.SystemState) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE system_state SET lockdown=$1, restarting=$2, unlock_code=$3, unlock_code_ttl=$4 WHERE id = 1`,
		st.Lockdown, st.Restarting, st.UnlockCode, nullableTime(st.UnlockCodeTTL),
	)
	if err != nil {
		return fmt.Errorf("pg: set system state: %w", err)
	}
	return nil
}
