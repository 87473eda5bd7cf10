package selfupdate

import (
	"context"
	"os"
	"path/filepath"
)

// fakeGitRunner simulates a repository with one file whose content can
// be swapped by "applying" a diff, without shelling to a real git
// binary — state transitions are what's under test here, not git
// itself (git.go's execGitRunner is exercised only by integration use).
type fakeGitRunner struct {
	applyErr      error
	applyCheckErr error
	worktreeErr   error
	content       map[string]string // baselineRef -> file content written into any worktree checked out at that ref
	patchedBody   string            // content written into touched files after Apply
	touchedPath   string
}

func (f *fakeGitRunner) WorktreeAdd(ctx context.Context, repoDir, worktreeDir, ref string) error {
	if f.worktreeErr != nil {
		return f.worktreeErr
	}
	if err := os.MkdirAll(worktreeDir, 0o755); err != nil {
		return err
	}
	if f.touchedPath == "" {
		return nil
	}
	full := filepath.Join(worktreeDir, f.touchedPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(f.content[ref]), 0o644)
}

func (f *fakeGitRunner) WorktreeRemove(ctx context.Context, repoDir, worktreeDir string) error {
	return os.RemoveAll(worktreeDir)
}

func (f *fakeGitRunner) ApplyCheck(ctx context.Context, worktreeDir, diff string) error {
	return f.applyCheckErr
}

func (f *fakeGitRunner) Apply(ctx context.Context, worktreeDir, diff string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	if f.touchedPath == "" {
		return nil
	}
	return os.WriteFile(filepath.Join(worktreeDir, f.touchedPath), []byte(f.patchedBody), 0o644)
}

func (f *fakeGitRunner) Branch(ctx context.Context, repoDir, name, ref string) error { return nil }
func (f *fakeGitRunner) Commit(ctx context.Context, repoDir, message string) error   { return nil }
func (f *fakeGitRunner) RevertHardTo(ctx context.Context, repoDir, ref string) error { return nil }
func (f *fakeGitRunner) HeadRef(ctx context.Context, repoDir string) (string, error) {
	return "deadbeef", nil
}

type fakeTestRunner struct {
	result TestResult
	err    error
}

func (f *fakeTestRunner) Run(ctx context.Context, worktreeDir string) (TestResult, error) {
	return f.result, f.err
}

type fakeReadiness struct {
	readySequence []bool
	i             int
}

func (f *fakeReadiness) Ready(ctx context.Context) bool {
	if f.i >= len(f.readySequence) {
		return false
	}
	v := f.readySequence[f.i]
	f.i++
	return v
}

type fakeRestarter struct{ err error }

func (f *fakeRestarter) Restart(ctx context.Context) error { return f.err }
