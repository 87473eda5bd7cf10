// Package selfupdate implements the patch state machine: a single
// patch proposal advances proposed → validated → tested → approved →
// applied → verified, branching to rejected/failed/rolled_back on
// guardrail or health failure. Every transition is persisted twice —
// once to the event log, once to a per-trace disk mirror under the
// configured state directory — so a crash mid-pipeline is recoverable
// from disk alone.
package selfupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

// Failure codes for the validate phase.
const (
	FailurePatchParse     = "patch_parse"
	FailurePathDenied     = "path_denied"
	FailureApplyConflict  = "apply_conflict"
	FailureReplayMismatch = "replay_mismatch"
	FailureGuardrailTrip  = "guardrail_tripped"
)

// TestResult is what a configured smoke-suite runner reports back to
// the pipeline for the test phase.
type TestResult struct {
	Passed       bool
	FailedChecks []string
}

// TestRunner runs the configured smoke suite (lint, typecheck, focused
// tests, migration dry-run) inside the validated worktree.
type TestRunner interface {
	Run(ctx context.Context, worktreeDir string) (TestResult, error)
}

// Proposal is the input to Propose: everything an evidence-backed patch
// submission carries.
type Proposal struct {
	TraceID               string
	BaselineRef           string
	Diff                  string
	Evidence              store.Evidence
	ArtifactSchemaVersion string
	RiskScore             float64
}

// Pipeline drives one patch at a time through the state machine.
// Concurrent proposals are serialized by the caller (task runner
// serialization key on "selfupdate") since apply is globally singleton.
type Pipeline struct {
	cfg       config.SelfUpdateConfig
	patches   store.PatchStore
	system    store.SystemStateStore
	events    *eventlog.Writer
	git       GitRunner
	tests     TestRunner
	readiness ReadinessChecker
	restarter Restarter
}

func New(cfg config.SelfUpdateConfig, patches store.PatchStore, system store.SystemStateStore, events *eventlog.Writer, git GitRunner, tests TestRunner, readiness ReadinessChecker, restarter Restarter) *Pipeline {
	return &Pipeline{
		cfg: cfg, patches: patches, system: system, events: events,
		git: git, tests: tests, readiness: readiness, restarter: restarter,
	}
}

func (p *Pipeline) emit(ctx context.Context, eventType, traceID string, payload map[string]any) {
	_, _ = p.events.Emit(ctx, eventType, "selfupdate",
		eventlog.Actor{Kind: "system", ID: "selfupdate"}, payload, traceID, idgen.Span(), "", "")
}

func (p *Pipeline) mirror(traceID string) (*diskMirror, error) {
	return newDiskMirror(p.cfg.StateDir, traceID)
}

// Propose ingests a proposal, enforcing the evidence contract and the
// governance guardrail, then persists it in state `proposed` (or
// `rejected` on contract/guardrail failure).
func (p *Pipeline) Propose(ctx context.Context, prop Proposal) (store.PatchRecord, error) {
	now := time.Now().UTC()
	rec := store.PatchRecord{
		TraceID:               prop.TraceID,
		BaselineRef:           prop.BaselineRef,
		Evidence:              prop.Evidence,
		ArtifactSchemaVersion: prop.ArtifactSchemaVersion,
		Diff:                  prop.Diff,
		ProposedAt:            now,
	}

	m, err := p.mirror(prop.TraceID)
	if err != nil {
		return rec, err
	}

	if err := validateEvidence(prop.BaselineRef, prop.Evidence); err != nil {
		return p.reject(ctx, m, rec, FailureEvidenceMissing)
	}

	files, err := parseUnifiedDiff(prop.Diff)
	if err != nil {
		return p.reject(ctx, m, rec, FailurePatchParse)
	}
	if violatesGovernanceGuardrail(files) {
		return p.reject(ctx, m, rec, FailureGovernanceIdentityEdits)
	}

	if err := m.writeDiff(prop.Diff); err != nil {
		return rec, err
	}
	if err := m.writeEvidence(prop.Evidence); err != nil {
		return rec, err
	}

	rec.State = store.PatchProposed
	if err := p.patches.Create(ctx, rec); err != nil {
		return rec, fmt.Errorf("selfupdate: persist proposed patch: %w", err)
	}
	if err := m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now}); err != nil {
		return rec, err
	}
	p.emit(ctx, protocol.EventSelfupdateProposed, rec.TraceID, map[string]any{"baseline_ref": rec.BaselineRef})
	return rec, nil
}

func (p *Pipeline) reject(ctx context.Context, m *diskMirror, rec store.PatchRecord, code string) (store.PatchRecord, error) {
	rec.State = store.PatchRejected
	rec.FailureCode = code
	rec.TerminalAt = time.Now().UTC()
	if err := p.patches.Create(ctx, rec); err != nil {
		return rec, fmt.Errorf("selfupdate: persist rejected patch: %w", err)
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, FailureCode: code, UpdatedAt: rec.TerminalAt})
	p.emit(ctx, protocol.EventSelfupdateRejected, rec.TraceID, map[string]any{"code": code})
	return rec, nil
}

func (p *Pipeline) fail(ctx context.Context, m *diskMirror, rec store.PatchRecord, code string) (store.PatchRecord, error) {
	rec.State = store.PatchFailed
	rec.FailureCode = code
	rec.TerminalAt = time.Now().UTC()
	if err := p.patches.Update(ctx, rec); err != nil {
		return rec, fmt.Errorf("selfupdate: persist failed patch: %w", err)
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, FailureCode: code, UpdatedAt: rec.TerminalAt})
	p.emit(ctx, protocol.EventSelfupdateFailed, rec.TraceID, map[string]any{"code": code})
	return rec, nil
}

// Validate parses the diff as a unified patch, checks every touched
// path against the configured allowlist, dry-applies to a temp
// worktree checked out at baseline_ref, and replays the apply to
// confirm it is deterministic.
func (p *Pipeline) Validate(ctx context.Context, traceID string) (store.PatchRecord, error) {
	rec, ok, err := p.patches.Get(ctx, traceID)
	if err != nil {
		return rec, err
	}
	if !ok || rec.State != store.PatchProposed {
		return rec, fmt.Errorf("selfupdate: validate requires state=proposed, got %v", rec.State)
	}
	m, err := p.mirror(traceID)
	if err != nil {
		return rec, err
	}

	files, err := parseUnifiedDiff(rec.Diff)
	if err != nil {
		return p.fail(ctx, m, rec, FailurePatchParse)
	}
	for _, path := range touchedPaths(files) {
		if !pathAllowed(p.cfg.RepoRoot, p.cfg.PathAllowlist, path) {
			return p.fail(ctx, m, rec, FailurePathDenied)
		}
	}

	worktreeA := filepath.Join(p.cfg.StateDir, traceID, "worktree-a")
	worktreeB := filepath.Join(p.cfg.StateDir, traceID, "worktree-b")
	defer p.git.WorktreeRemove(ctx, p.cfg.RepoRoot, worktreeA)
	defer p.git.WorktreeRemove(ctx, p.cfg.RepoRoot, worktreeB)

	if err := p.git.WorktreeAdd(ctx, p.cfg.RepoRoot, worktreeA, rec.BaselineRef); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	if err := p.git.ApplyCheck(ctx, worktreeA, rec.Diff); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	if err := p.git.Apply(ctx, worktreeA, rec.Diff); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	hashesA, err := hashFiles(worktreeA, touchedPaths(files))
	if err != nil {
		return p.fail(ctx, m, rec, FailureReplayMismatch)
	}

	if err := p.git.WorktreeAdd(ctx, p.cfg.RepoRoot, worktreeB, rec.BaselineRef); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	if err := p.git.Apply(ctx, worktreeB, rec.Diff); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	hashesB, err := hashFiles(worktreeB, touchedPaths(files))
	if err != nil {
		return p.fail(ctx, m, rec, FailureReplayMismatch)
	}

	if !hashesEqual(hashesA, hashesB) {
		return p.fail(ctx, m, rec, FailureReplayMismatch)
	}

	rec.State = store.PatchValidated
	now := time.Now().UTC()
	rec.ValidatedAt = now
	if err := p.patches.Update(ctx, rec); err != nil {
		return rec, err
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now})
	p.emit(ctx, protocol.EventSelfupdateValidated, rec.TraceID, map[string]any{"files": touchedPaths(files)})
	return rec, nil
}

// Test runs the configured smoke suite in a fresh worktree at
// baseline_ref with the patch applied. In "enforce" mode a failure
// moves the patch to `failed`; in "warn" mode it moves to `tested`
// regardless, with failures recorded in the event payload.
func (p *Pipeline) Test(ctx context.Context, traceID string) (store.PatchRecord, error) {
	rec, ok, err := p.patches.Get(ctx, traceID)
	if err != nil {
		return rec, err
	}
	if !ok || rec.State != store.PatchValidated {
		return rec, fmt.Errorf("selfupdate: test requires state=validated, got %v", rec.State)
	}
	m, err := p.mirror(traceID)
	if err != nil {
		return rec, err
	}

	worktree := filepath.Join(p.cfg.StateDir, traceID, "worktree-test")
	defer p.git.WorktreeRemove(ctx, p.cfg.RepoRoot, worktree)
	if err := p.git.WorktreeAdd(ctx, p.cfg.RepoRoot, worktree, rec.BaselineRef); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	if err := p.git.Apply(ctx, worktree, rec.Diff); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}

	result, err := p.tests.Run(ctx, worktree)
	if err != nil {
		return p.fail(ctx, m, rec, "test_runner_error")
	}
	if !result.Passed && p.cfg.TestGateMode == "enforce" {
		return p.fail(ctx, m, rec, "test_gate_failed")
	}

	rec.State = store.PatchTested
	now := time.Now().UTC()
	rec.TestedAt = now
	if err := p.patches.Update(ctx, rec); err != nil {
		return rec, err
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now})
	p.emit(ctx, protocol.EventSelfupdateTested, rec.TraceID, map[string]any{
		"passed": result.Passed, "failed_checks": result.FailedChecks, "gate_mode": p.cfg.TestGateMode,
	})
	return rec, nil
}

// Approve moves a tested patch to approved. In the development profile
// this auto-approves; in production it requires approverID to be
// supplied by an explicit admin action.
func (p *Pipeline) Approve(ctx context.Context, traceID, approverID string) (store.PatchRecord, error) {
	rec, ok, err := p.patches.Get(ctx, traceID)
	if err != nil {
		return rec, err
	}
	if !ok || rec.State != store.PatchTested {
		return rec, fmt.Errorf("selfupdate: approve requires state=tested, got %v", rec.State)
	}
	if p.cfg.Profile == "production" && approverID == "" {
		return rec, fmt.Errorf("selfupdate: production profile requires an explicit approver")
	}

	m, err := p.mirror(traceID)
	if err != nil {
		return rec, err
	}
	rec.State = store.PatchApproved
	now := time.Now().UTC()
	rec.ApprovedAt = now
	if err := p.patches.Update(ctx, rec); err != nil {
		return rec, err
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now})
	p.emit(ctx, protocol.EventSelfupdateApproved, rec.TraceID, map[string]any{"approver_id": approverID, "profile": p.cfg.Profile})
	return rec, nil
}

// Apply creates a new branch at baseline_ref, applies the patch,
// commits, and triggers a process restart. Guardrails (files touched,
// risk score, daily attempt/PR caps) are checked before any git
// mutation; a trip fails the patch without touching the real repo.
func (p *Pipeline) Apply(ctx context.Context, traceID string, riskScore float64) (store.PatchRecord, error) {
	rec, ok, err := p.patches.Get(ctx, traceID)
	if err != nil {
		return rec, err
	}
	if !ok || rec.State != store.PatchApproved {
		return rec, fmt.Errorf("selfupdate: apply requires state=approved, got %v", rec.State)
	}
	m, err := p.mirror(traceID)
	if err != nil {
		return rec, err
	}

	files, err := parseUnifiedDiff(rec.Diff)
	if err != nil {
		return p.fail(ctx, m, rec, FailurePatchParse)
	}
	if p.cfg.MaxFilesPerPatch > 0 && len(files) > p.cfg.MaxFilesPerPatch {
		return p.fail(ctx, m, rec, FailureGuardrailTrip)
	}
	if p.cfg.MaxRiskScore > 0 && riskScore > p.cfg.MaxRiskScore {
		return p.fail(ctx, m, rec, FailureGuardrailTrip)
	}
	if tripped, err := p.dailyCapsTripped(ctx); err != nil {
		return rec, err
	} else if tripped {
		return p.fail(ctx, m, rec, FailureGuardrailTrip)
	}

	branch := fmt.Sprintf("auto/%d", time.Now().UTC().Unix())
	if err := p.git.Branch(ctx, p.cfg.RepoRoot, branch, rec.BaselineRef); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	if err := p.git.Apply(ctx, p.cfg.RepoRoot, rec.Diff); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}
	if err := p.git.Commit(ctx, p.cfg.RepoRoot, fmt.Sprintf("auto: apply patch %s", rec.TraceID)); err != nil {
		return p.fail(ctx, m, rec, FailureApplyConflict)
	}

	rec.State = store.PatchApplied
	now := time.Now().UTC()
	rec.AppliedAt = now
	if err := p.patches.Update(ctx, rec); err != nil {
		return rec, err
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now})
	p.emit(ctx, protocol.EventSelfupdateApplied, rec.TraceID, map[string]any{"branch": branch})

	if err := p.system.Set(ctx, store.SystemState{Restarting: true}); err != nil {
		return rec, fmt.Errorf("selfupdate: set restarting flag: %w", err)
	}
	if err := p.restarter.Restart(ctx); err != nil {
		return rec, fmt.Errorf("selfupdate: trigger restart: %w", err)
	}
	return rec, nil
}

func (p *Pipeline) dailyCapsTripped(ctx context.Context) (bool, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if p.cfg.MaxPatchAttemptsPerDay > 0 {
		n, err := p.patches.CountSince(ctx, since)
		if err != nil {
			return false, err
		}
		if n >= p.cfg.MaxPatchAttemptsPerDay {
			return true, nil
		}
	}
	if p.cfg.MaxPRsPerDay > 0 {
		applied, err := p.patches.ListByState(ctx, store.PatchApplied)
		if err != nil {
			return false, err
		}
		count := 0
		for _, r := range applied {
			if r.AppliedAt.After(since) {
				count++
			}
		}
		if count >= p.cfg.MaxPRsPerDay {
			return true, nil
		}
	}
	return false, nil
}

// Verify polls readiness after a restart. K consecutive healthy checks
// within the configured window move the patch to verified; otherwise
// it rolls back to the pre-apply reference and restarts again. Two
// rollbacks within the lockdown window trip an automatic system-wide
// lockdown.
func (p *Pipeline) Verify(ctx context.Context, traceID string) (store.PatchRecord, error) {
	rec, ok, err := p.patches.Get(ctx, traceID)
	if err != nil {
		return rec, err
	}
	if !ok || rec.State != store.PatchApplied {
		return rec, fmt.Errorf("selfupdate: verify requires state=applied, got %v", rec.State)
	}
	m, err := p.mirror(traceID)
	if err != nil {
		return rec, err
	}

	if p.pollReady(ctx) {
		rec.State = store.PatchVerified
		now := time.Now().UTC()
		rec.TerminalAt = now
		if err := p.patches.Update(ctx, rec); err != nil {
			return rec, err
		}
		_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now})
		p.emit(ctx, protocol.EventSelfupdateVerified, rec.TraceID, nil)
		_ = p.system.Set(ctx, store.SystemState{Restarting: false})
		return rec, nil
	}

	return p.rollback(ctx, m, rec)
}

func (p *Pipeline) pollReady(ctx context.Context) bool {
	interval := p.cfg.ReadinessWindow / time.Duration(max(p.cfg.ReadinessCheckCount, 1))
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(p.cfg.ReadinessWindow)
	consecutive := 0
	for time.Now().Before(deadline) {
		if p.readiness.Ready(ctx) {
			consecutive++
			if consecutive >= p.cfg.ReadinessCheckCount {
				return true
			}
		} else {
			consecutive = 0
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

func (p *Pipeline) rollback(ctx context.Context, m *diskMirror, rec store.PatchRecord) (store.PatchRecord, error) {
	if err := p.git.RevertHardTo(ctx, p.cfg.RepoRoot, rec.BaselineRef); err != nil {
		return p.fail(ctx, m, rec, "rollback_failed")
	}
	if err := p.restarter.Restart(ctx); err != nil {
		return p.fail(ctx, m, rec, "rollback_restart_failed")
	}

	rec.State = store.PatchRolledBack
	now := time.Now().UTC()
	rec.TerminalAt = now
	if err := p.patches.Update(ctx, rec); err != nil {
		return rec, err
	}
	_ = m.writeState(stateSnapshot{TraceID: rec.TraceID, State: rec.State, UpdatedAt: now})
	p.emit(ctx, protocol.EventSelfupdateRolledBack, rec.TraceID, nil)
	p.emit(ctx, protocol.EventSelfupdateRollback, rec.TraceID, map[string]any{"baseline_ref": rec.BaselineRef})
	_ = p.system.Set(ctx, store.SystemState{Restarting: false})

	tripped, err := p.rollbackLockdownTripped(ctx)
	if err == nil && tripped {
		p.triggerLockdown(ctx)
	}
	return rec, nil
}

func (p *Pipeline) rollbackLockdownTripped(ctx context.Context) (bool, error) {
	if p.cfg.RollbackLockdownCount <= 0 {
		return false, nil
	}
	rolledBack, err := p.patches.ListByState(ctx, store.PatchRolledBack)
	if err != nil {
		return false, err
	}
	since := time.Now().UTC().Add(-p.cfg.RollbackLockdownWindow)
	count := 0
	for _, r := range rolledBack {
		if r.TerminalAt.After(since) {
			count++
		}
	}
	return count >= p.cfg.RollbackLockdownCount, nil
}

func (p *Pipeline) triggerLockdown(ctx context.Context) {
	state, err := p.system.Get(ctx)
	if err != nil {
		return
	}
	state.Lockdown = true
	if err := p.system.Set(ctx, state); err != nil {
		return
	}
	p.emit(ctx, protocol.EventLockdownTriggered, "", map[string]any{"reason": "repeated_rollback"})
}

func hashFiles(dir string, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, rel := range paths {
		b, err := os.ReadFile(filepath.Join(dir, rel))
		if os.IsNotExist(err) {
			out[rel] = "" // deleted by the patch
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("selfupdate: hash %s: %w", rel, err)
		}
		sum := sha256.Sum256(b)
		out[rel] = hex.EncodeToString(sum[:])
	}
	return out, nil
}

func hashesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func pathAllowed(repoRoot string, allowlist []string, rel string) bool {
	abs := filepath.Join(repoRoot, rel)
	for _, prefix := range allowlist {
		if within(abs, filepath.Join(repoRoot, prefix)) {
			return true
		}
	}
	return false
}

func within(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel))
}
