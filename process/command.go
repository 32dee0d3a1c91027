package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const defaultGracePeriod = 5 * time.Second

// Command describes a server binary invocation.
type Command struct {
	Binary string
	Args   []string
	// Env entries (key=value) are appended to the parent environment.
	Env []string
	// GracePeriod between SIGTERM and SIGKILL. Zero means five seconds.
	GracePeriod time.Duration
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.Join(append([]string{c.Binary}, c.Args...), " ")
}

func (c Command) grace() time.Duration {
	if c.GracePeriod <= 0 {
		return defaultGracePeriod
	}
	return c.GracePeriod
}

// build prepares an exec.Cmd for a server that outlives any one request.
func (c Command) build() (*exec.Cmd, error) {
	if c.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	return c.configure(exec.Command(c.Binary, c.Args...)), nil //nolint:gosec // callers choose the binary
}

// buildContext prepares an exec.Cmd that is cancelled with ctx.
func (c Command) buildContext(ctx context.Context) (*exec.Cmd, error) {
	if c.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	return c.configure(exec.CommandContext(ctx, c.Binary, c.Args...)), nil //nolint:gosec // callers choose the binary
}

// configure places cmd in its own process group and applies Env.
func (c Command) configure(cmd *exec.Cmd) *exec.Cmd {
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// signalGroup delivers sig to every process in the group led by pid.
// A group that is already gone is not an error.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}
