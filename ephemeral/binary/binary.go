// Package binary provides a throwaway MongoDB server as a local mongod
// subprocess with a temporary data directory.
package binary

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/logger"
	"github.com/kbukum/mongofixtures/process"
)

func init() {
	ephemeral.Register(ephemeral.ProviderBinary, func(cfg ephemeral.Config, log *logger.Logger) (ephemeral.Provider, error) {
		return New(cfg, log), nil
	})
}

// Provider starts mongod processes.
type Provider struct {
	cfg ephemeral.Config
	log *logger.Logger
}

var _ ephemeral.Provider = (*Provider)(nil)

// New creates a provider running cfg.Binary.
func New(cfg ephemeral.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	return &Provider{cfg: cfg, log: log.WithComponent("ephemeral.binary")}
}

func (p *Provider) Name() string { return ephemeral.ProviderBinary }

// Start checks that the binary runs, then launches it on a free loopback
// port with a fresh data directory.
func (p *Provider) Start(ctx context.Context) (ephemeral.Instance, error) {
	res, err := process.Run(ctx, process.Command{Binary: p.cfg.Binary, Args: []string{"--version"}})
	if err != nil {
		return nil, errors.ProviderError(p.Name(), fmt.Errorf("%s --version: %w", p.cfg.Binary, err))
	}
	p.log.Debug("server binary found", logger.Fields("binary", p.cfg.Binary, "version", res.FirstLine()))

	port, err := freePort()
	if err != nil {
		return nil, errors.ProviderError(p.Name(), err)
	}
	dir, err := os.MkdirTemp("", "mongofixtures-")
	if err != nil {
		return nil, errors.ProviderError(p.Name(), fmt.Errorf("create data directory: %w", err))
	}

	args := append([]string{
		"--port", strconv.Itoa(port),
		"--bind_ip", "127.0.0.1",
		"--dbpath", dir,
	}, p.cfg.Args...)
	proc, err := process.Start(process.Command{Binary: p.cfg.Binary, Args: args, GracePeriod: p.cfg.StopTimeout})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errors.ProviderError(p.Name(), err)
	}

	inst := &instance{
		proc: proc,
		dir:  dir,
		uri:  fmt.Sprintf("mongodb://127.0.0.1:%d/?directConnection=true", port),
		log:  p.log,
	}
	p.log.Info("server process started", logger.Fields("pid", proc.Pid(), logger.FieldTarget, inst.uri))
	return inst, nil
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

type instance struct {
	proc *process.Process
	dir  string
	uri  string
	log  *logger.Logger
	once sync.Once
	err  error
}

func (i *instance) ConnectionString() string { return i.uri }

// Check reports an error with the server output once the process has exited.
func (i *instance) Check() error {
	exited, err := i.proc.Exited()
	if !exited {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("exited")
	}
	return fmt.Errorf("server process %w: %s", err, lastLines(i.proc.Output(), 5))
}

// Stop terminates the process group and removes the data directory.
func (i *instance) Stop(ctx context.Context) error {
	i.once.Do(func() {
		var errs []error
		if err := i.proc.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := os.RemoveAll(i.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove data directory: %w", err))
		}
		if len(errs) > 0 {
			i.err = errors.ProviderError(ephemeral.ProviderBinary, stderrors.Join(errs...))
			return
		}
		i.log.Info("server process stopped", logger.Fields("pid", i.proc.Pid()))
	})
	return i.err
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
