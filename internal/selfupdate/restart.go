package selfupdate

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRestarter shells out to the operator-configured restart
// command (e.g. a systemd unit restart or a supervisor signal), the
// same exec.CommandContext pattern the host-exec tool uses.
type CommandRestarter struct {
	Command []string
}

func NewCommandRestarter(command []string) *CommandRestarter {
	return &CommandRestarter{Command: command}
}

func (r *CommandRestarter) Restart(ctx context.Context) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("selfupdate: no restart command configured")
	}
	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("selfupdate: restart command failed: %w", err)
	}
	return nil
}
