package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// AgentStore implements store.AgentStore. Governance fields are parsed
// from identity frontmatter at bundle-load time and stored as columns
// so the policy engine can read them without touching the filesystem.
type AgentStore struct{ db *sql.DB }

func NewAgentStore(db *sql.DB) *AgentStore { return &AgentStore{db: db} }

func (s *AgentStore) Get(ctx context.Context, id string) (store.AgentBundle, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity, persona, heartbeat, allowed_tools, pinned_skills, risk_tier, max_actions_per_step, allowed_paths, can_request_privileged_change, updated_at
		FROM agent_bundles WHERE id = $1`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AgentBundle{}, false, nil
	}
	if err != nil {
		return store.AgentBundle{}, false, fmt.Errorf("pg: get agent: %w", err)
	}
	return a, true, nil
}

func (s *AgentStore) List(ctx context.Context) ([]store.AgentBundle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, persona, heartbeat, allowed_tools, pinned_skills, risk_tier, max_actions_per_step, allowed_paths, can_request_privileged_change, updated_at
		FROM agent_bundles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pg: list agents: %w", err)
	}
	defer rows.Close()

	var out []store.AgentBundle
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row *sql.Row) (store.AgentBundle, error)    { return scanAgentAny(row) }
func scanAgentRows(rows *sql.Rows) (store.AgentBundle, error) { return scanAgentAny(rows) }

func scanAgentAny(row scanner) (store.AgentBundle, error) {
	var a store.AgentBundle
	var allowedToolsJSON, pinnedSkillsJSON, allowedPathsJSON []byte
	if err := row.Scan(&a.ID, &a.Identity, &a.Persona, &a.Heartbeat, &allowedToolsJSON, &pinnedSkillsJSON, &a.RiskTier, &a.MaxActionsPerStep, &allowedPathsJSON, &a.CanRequestPrivilegedChange, &a.UpdatedAt); err != nil {
		return store.AgentBundle{}, err
	}
	_ = json.Unmarshal(allowedToolsJSON, &a.AllowedTools)
	_ = json.Unmarshal(pinnedSkillsJSON, &a.PinnedSkills)
	_ = json.Unmarshal(allowedPathsJSON, &a.AllowedPaths)
	return a, nil
}
