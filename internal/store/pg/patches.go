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

// PatchStore implements store.PatchStore for the self-update pipeline's
// state machine. trace_id is the primary key.
type PatchStore struct{ db *sql.DB }

func NewPatchStore(db *sql.DB) *PatchStore { return &PatchStore{db: db} }

func (s *PatchStore) Create(ctx context.Context, p store.PatchRecord) error {
	ev, _ := json.Marshal(p.Evidence)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patch_records (trace_id, state, baseline_ref, evidence, artifact_schema_version, diff, failure_code, proposed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (trace_id) DO NOTHING`,
		p.TraceID, p.State, p.BaselineRef, ev, p.ArtifactSchemaVersion, p.Diff, p.FailureCode, p.ProposedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: create patch: %w", err)
	}
	return nil
}

func (s *PatchStore) Get(ctx context.Context, traceID string) (store.PatchRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trace_id, state, baseline_ref, evidence, artifact_schema_version, diff, failure_code,
		       proposed_at, validated_at, tested_at, approved_at, applied_at, terminal_at
		FROM patch_records WHERE trace_id = $1`, traceID)
	p, err := scanPatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.PatchRecord{}, false, nil
	}
	if err != nil {
		return store.PatchRecord{}, false, fmt.Errorf("pg: get patch: %w", err)
	}
	return p, true, nil
}

func (s *PatchStore) Update(ctx context.Context, p store.PatchRecord) error {
	ev, _ := json.Marshal(p.Evidence)
	_, err := s.db.ExecContext(ctx, `
		UPDATE patch_records SET state=$2, diff=$3, failure_code=$4, evidence=$5,
			validated_at=$6, tested_at=$7, approved_at=$8, applied_at=$9, terminal_at=$10
		WHERE trace_id = $1`,
		p.TraceID, p.State, p.Diff, p.FailureCode, ev,
		nullableTime(p.ValidatedAt), nullableTime(p.TestedAt), nullableTime(p.ApprovedAt), nullableTime(p.AppliedAt), nullableTime(p.TerminalAt),
	)
	if err != nil {
		return fmt.Errorf("pg: update patch: %w", err)
	}
	return nil
}

func (s *PatchStore) ListByState(ctx context.Context, state store.PatchState) ([]store.PatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_id, state, baseline_ref, evidence, artifact_schema_version, diff, failure_code,
		       proposed_at, validated_at, tested_at, approved_at, applied_at, terminal_at
		FROM patch_records WHERE state = $1 ORDER BY proposed_at`, state)
	if err != nil {
		return nil, fmt.Errorf("pg: list patches by state: %w", err)
	}
	defer rows.Close()

	var out []store.PatchRecord
	for rows.Next() {
		p, err := scanPatchRows(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan patch: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PatchStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM patch_records WHERE proposed_at > $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pg: count patches since: %w", err)
	}
	return count, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func scanPatch(row *sql.Row) (store.PatchRecord, error)      { return scanPatchAny(row) }
func scanPatchRows(rows *sql.Rows) (store.PatchRecord, error) { return scanPatchAny(rows) }

func scanPatchAny(row scanner) (store.PatchRecord, error) {
	var p store.PatchRecord
	var evJSON []byte
	var validated, tested, approved, applied, terminal sql.NullTime
	if err := row.Scan(&p.TraceID, &p.State, &p.BaselineRef, &evJSON, &p.ArtifactSchemaVersion, &p.Diff, &p.FailureCode,
		&p.ProposedAt, &validated, &tested, &approved, &applied, &terminal); err != nil {
		return store.PatchRecord{}, err
	}
	_ = json.Unmarshal(evJSON, &p.Evidence)
	p.ValidatedAt = validated.Time
	p.TestedAt = tested.Time
	p.ApprovedAt = approved.Time
	p.AppliedAt = applied.Time
	p.TerminalAt = terminal.Time
	return p, nil
}
