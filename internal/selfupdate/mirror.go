package selfupdate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// diskMirror persists the recovery source of truth for one patch under
// <state_dir>/<trace_id>/: patch.diff, evidence.json, state.json, and
// an append-only log.jsonl of every transition. state.json is written
// before the corresponding event is considered committed, so a crash
// between the two is recoverable from disk alone.
type diskMirror struct {
	root string
}

func newDiskMirror(stateDir, traceID string) (*diskMirror, error) {
	dir := filepath.Join(stateDir, traceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("selfupdate: create state dir: %w", err)
	}
	return &diskMirror{root: dir}, nil
}

func (m *diskMirror) writeDiff(diff string) error {
	return os.WriteFile(filepath.Join(m.root, "patch.diff"), []byte(diff), 0o644)
}

func (m *diskMirror) writeEvidence(e store.Evidence) error {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("selfupdate: marshal evidence: %w", err)
	}
	return os.WriteFile(filepath.Join(m.root, "evidence.json"), b, 0o644)
}

type stateSnapshot struct {
	TraceID     string          `json:"trace_id"`
	State       store.PatchState `json:"state"`
	FailureCode string          `json:"failure_code,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (m *diskMirror) writeState(s stateSnapshot) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("selfupdate: marshal state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.root, "state.json"), b, 0o644); err != nil {
		return fmt.Errorf("selfupdate: write state.json: %w", err)
	}
	return m.appendLog(s)
}

func (m *diskMirror) appendLog(s stateSnapshot) error {
	f, err := os.OpenFile(filepath.Join(m.root, "log.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("selfupdate: open log.jsonl: %w", err)
	}
	defer f.Close()
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// readState reconciles the disk mirror for crash recovery: the caller
// compares this against the last known event to decide which, if
// either, needs replaying.
func readState(stateDir, traceID string) (stateSnapshot, bool, error) {
	b, err := os.ReadFile(filepath.Join(stateDir, traceID, "state.json"))
	if os.IsNotExist(err) {
		return stateSnapshot{}, false, nil
	}
	if err != nil {
		return stateSnapshot{}, false, fmt.Errorf("selfupdate: read state.json: %w", err)
	}
	var s stateSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return stateSnapshot{}, false, fmt.Errorf("selfupdate: decode state.json: %w", err)
	}
	return s, true, nil
}
