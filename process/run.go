package process

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"
)

// Result is the outcome of a command run to completion.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the process was killed before reporting one.
	ExitCode int
	Elapsed  time.Duration
}

// FirstLine returns the first stdout line, trimmed. Version checks use it.
func (r *Result) FirstLine() string {
	line, _, _ := strings.Cut(string(r.Stdout), "\n")
	return strings.TrimSpace(line)
}

// Run executes cmd and waits for it. Cancelling ctx sends SIGTERM to the
// process group; the group is killed if it outlives the grace period.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	c, err := cmd.buildContext(ctx)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return signalGroup(c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = cmd.grace()

	began := time.Now()
	runErr := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Elapsed:  time.Since(began),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case runErr == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s interrupted: %w", cmd.Binary, ctx.Err())
	default:
		return res, fmt.Errorf("process: %s exited with %d: %w", cmd.Binary, res.ExitCode, runErr)
	}
}
