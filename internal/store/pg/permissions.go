package pg

import (
	"context"
	"database/sql"
	"fmt"
)

// PermissionStore implements store.PermissionStore. Absence of a row
// means deny, per the Tool permission entity.
type PermissionStore struct{ db *sql.DB }

func NewPermissionStore(db *sql.DB) *PermissionStore { return &PermissionStore{db: db} }

func (s *PermissionStore) Permitted(ctx context.Context, principalID, toolName string) (bool, error) {
	var allow bool
	err := s.db.QueryRowContext(ctx, `
		SELECT allow FROM tool_permissions WHERE principal_id = $1 AND tool_name = $2`,
		principalID, toolName,
	).Scan(&allow)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pg: check permission: %w", err)
	}
	return allow, nil
}
