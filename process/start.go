package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a running background subprocess started by Start.
type Process struct {
	cmd   *exec.Cmd
	grace time.Duration
	out   *syncBuffer

	done    chan struct{}
	waitErr error
	stop    sync.Once
}

// Start launches cmd in its own process group and returns without waiting
// for it to exit. Stdout and stderr are captured together.
func Start(cmd Command) (*Process, error) {
	c, err := cmd.build()
	if err != nil {
		return nil, err
	}
	out := &syncBuffer{}
	c.Stdout = out
	c.Stderr = out
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", cmd, err)
	}

	p := &Process{cmd: c, grace: cmd.grace(), out: out, done: make(chan struct{})}
	go func() {
		p.waitErr = c.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has exited, and its wait error if so.
func (p *Process) Exited() (bool, error) {
	select {
	case <-p.done:
		return true, p.waitErr
	default:
		return false, nil
	}
}

// Output returns everything the process has written so far.
func (p *Process) Output() string { return p.out.String() }

// Stop sends SIGTERM to the process group and waits for the exit. After the
// grace period, or when ctx ends, the group is killed. Stopping an exited
// process is a no-op.
func (p *Process) Stop(ctx context.Context) error {
	var err error
	p.stop.Do(func() {
		if exited, _ := p.Exited(); exited {
			return
		}
		pid := p.cmd.Process.Pid
		if kerr := signalGroup(pid, syscall.SIGTERM); kerr != nil {
			err = fmt.Errorf("process: sigterm: %w", kerr)
		}

		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-p.done:
			return
		case <-timer.C:
		case <-ctx.Done():
		}
		if kerr := signalGroup(pid, syscall.SIGKILL); kerr != nil {
			err = fmt.Errorf("process: sigkill: %w", kerr)
		}
		<-p.done
	})
	return err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
