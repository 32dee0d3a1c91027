package fixtures_test

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	memdb "github.com/kbukum/mongofixtures/docstore/testutil"
	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/fixtures"
	"github.com/kbukum/mongofixtures/logger"
	"github.com/kbukum/mongofixtures/resilience"
)

type fakeInstance struct {
	uri     string
	dead    error
	stopped atomic.Int32
}

func (i *fakeInstance) ConnectionString() string   { return i.uri }
func (i *fakeInstance) Stop(context.Context) error { i.stopped.Add(1); return nil }
func (i *fakeInstance) Check() error               { return i.dead }

type fakeProvider struct {
	inst *fakeInstance
	err  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Start(context.Context) (ephemeral.Instance, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.inst, nil
}

// unreachable has nothing listening, so pings fail without a server.
const unreachable = "mongodb://127.0.0.1:1/?directConnection=true"

func TestStartWrapsProviderFailure(t *testing.T) {
	boom := stderrors.New("daemon not running")
	fx := fixtures.New(fixtures.Config{},
		fixtures.WithLogger(logger.Nop()),
		fixtures.WithProvider(&fakeProvider{err: boom}),
	)
	err := fx.Start(context.Background())
	if !errors.HasCode(err, errors.ErrCodeProvider) || !stderrors.Is(err, boom) {
		t.Fatalf("expected PROVIDER_ERROR wrapping the cause, got %v", err)
	}
}

func TestStartStopsServerThatDied(t *testing.T) {
	inst := &fakeInstance{uri: unreachable, dead: stderrors.New("mongod exited: status 100")}
	fx := fixtures.New(fixtures.Config{},
		fixtures.WithLogger(logger.Nop()),
		fixtures.WithProvider(&fakeProvider{inst: inst}),
	)

	start := time.Now()
	err := fx.Start(context.Background())
	if !errors.HasCode(err, errors.ErrCodeProvider) {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("dead server was retried for %v", time.Since(start))
	}
	if n := inst.stopped.Load(); n != 1 {
		t.Errorf("instance stopped %d times, want 1", n)
	}
}

func TestStartGivesUpWhenServerNeverAnswers(t *testing.T) {
	inst := &fakeInstance{uri: unreachable}
	cfg := fixtures.Config{Mongo: fixtures.MongoConfig{
		ConnectTimeout: 50 * time.Millisecond,
		ReadyAttempts:  2,
	}}
	fx := fixtures.New(cfg,
		fixtures.WithLogger(logger.Nop()),
		fixtures.WithProvider(&fakeProvider{inst: inst}),
	)

	err := fx.Start(context.Background())
	if !errors.HasCode(err, errors.ErrCodeConnectionFailed) {
		t.Fatalf("expected CONNECTION_FAILED, got %v", err)
	}
	var exhausted *resilience.ExhaustedError
	if !stderrors.As(err, &exhausted) || exhausted.Attempts != 2 {
		t.Errorf("expected two ping attempts, got %v", err)
	}
	if n := inst.stopped.Load(); n != 1 {
		t.Errorf("instance stopped %d times, want 1", n)
	}
	if fx.ConnectionString() != "" {
		t.Errorf("ConnectionString after failed start = %q", fx.ConnectionString())
	}
}

func TestStartUnknownProvider(t *testing.T) {
	cfg := fixtures.Config{Server: ephemeral.Config{Provider: "podman"}}
	fx := fixtures.New(cfg, fixtures.WithLogger(logger.Nop()))
	if err := fx.Start(context.Background()); !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestStartRequiresBucketBackendWhenGridFSEnabled(t *testing.T) {
	fx := fixtures.New(fixtures.Config{GridFS: fixtures.GridFSConfig{Enabled: true}},
		fixtures.WithLogger(logger.Nop()),
		fixtures.WithBackends(memdb.NewBackend("test"), nil),
	)
	err := fx.Start(context.Background())
	if !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
	if err := fx.Populate(context.Background(), fubar); !errors.HasCode(err, errors.ErrCodeNotStarted) {
		t.Errorf("Populate after failed Start: expected NOT_STARTED, got %v", err)
	}
}
