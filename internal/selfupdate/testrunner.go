package selfupdate

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandTestRunner runs the operator-configured smoke-suite command
// inside the patched worktree, the same exec.CommandContext pattern
// CommandRestarter and the host-exec tool use.
type CommandTestRunner struct {
	Command []string
}

func NewCommandTestRunner(command []string) *CommandTestRunner {
	return &CommandTestRunner{Command: command}
}

func (r *CommandTestRunner) Run(ctx context.Context, worktreeDir string) (TestResult, error) {
	if len(r.Command) == 0 {
		return TestResult{Passed: true}, nil
	}
	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = worktreeDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return TestResult{Passed: false, FailedChecks: []string{out.String()}}, nil
	}
	return TestResult{Passed: true}, nil
}
