package fixtures

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/docstore"
	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/logger"
	"github.com/kbukum/mongofixtures/observability"
	"github.com/kbukum/mongofixtures/resilience"
	"github.com/kbukum/mongofixtures/version"
)

// Start connects to the fixture database. With injected backends it only
// wires them. Otherwise it starts the configured server, connects and
// waits until the server answers pings. Start on a started Fixtures is a
// no-op.
func (f *Fixtures) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}

	ctx, op := observability.StartOperation(ctx, f.tracer, f.metrics, observability.SpanConnect)
	if f.dbBackend != nil {
		if f.cfg.GridFS.Enabled && f.bucketBackend == nil {
			return op.End(errors.InvalidConfig("gridfs is enabled but no bucket backend was given"))
		}
		f.attach(f.dbBackend, f.bucketBackend)
	} else if err := f.connect(ctx); err != nil {
		return op.End(err)
	}
	f.started = true
	return op.End(nil)
}

func (f *Fixtures) connect(ctx context.Context) error {
	provider := f.provider
	if provider == nil {
		p, err := ephemeral.New(f.cfg.Server, f.log)
		if err != nil {
			return err
		}
		provider = p
	}

	startCtx, cancel := context.WithTimeout(ctx, f.cfg.Server.StartTimeout)
	defer cancel()

	inst, err := provider.Start(startCtx)
	if err != nil {
		if errors.IsAppError(err) {
			return err
		}
		return errors.ProviderError(provider.Name(), err)
	}
	serverURI := inst.ConnectionString()
	f.log.Info("server started", logger.Fields(
		logger.FieldProvider, provider.Name(),
		logger.FieldTarget, target(serverURI),
	))

	opts := options.Client().
		ApplyURI(serverURI).
		SetAppName(version.AppName()).
		SetConnectTimeout(f.cfg.Mongo.ConnectTimeout).
		SetServerSelectionTimeout(f.cfg.Mongo.ConnectTimeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		f.stopInstance(ctx, inst)
		return errors.ConnectionFailed(target(serverURI), err)
	}
	if err := f.waitReady(startCtx, client, inst, provider.Name()); err != nil {
		if derr := client.Disconnect(ctx); derr != nil {
			f.log.Warn("disconnect failed", logger.ErrorFields("disconnect", derr))
		}
		f.stopInstance(ctx, inst)
		return err
	}

	dbName := databaseName(f.cfg.Mongo, serverURI)
	db := client.Database(dbName)
	var bucket blobstore.Bucket
	if f.cfg.GridFS.Enabled {
		bucket = blobstore.NewGridFSBucket(db, f.cfg.GridFS.BucketName, f.cfg.GridFS.ChunkSize)
	}
	f.instance = inst
	f.client = client
	f.uri = withDatabase(serverURI, dbName)
	f.attach(docstore.NewMongoBackend(db), bucket)

	f.log.Info("connected", logger.Fields(
		logger.FieldTarget, target(serverURI),
		logger.FieldDatabase, dbName,
	))
	return nil
}

// waitReady pings until the server answers, mongo.ready_attempts run out or
// the instance reports that its server died.
func (f *Fixtures) waitReady(ctx context.Context, client *mongo.Client, inst ephemeral.Instance, provider string) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = f.cfg.Mongo.ReadyAttempts
	cfg.RetryIf = func(err error) bool {
		return ctx.Err() == nil && !errors.HasCode(err, errors.ErrCodeProvider)
	}
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		f.log.Debug("server not ready", logger.Fields(
			"attempt", attempt,
			logger.FieldError, err.Error(),
			"backoff_ms", backoff.Milliseconds(),
		))
	}

	err := resilience.Retry(ctx, cfg, func(ctx context.Context) error {
		if err := ephemeral.Alive(inst); err != nil {
			return errors.ProviderError(provider, err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, f.cfg.Mongo.ConnectTimeout)
		defer cancel()
		return client.Ping(pingCtx, readpref.Primary())
	})
	if err == nil || errors.IsAppError(err) {
		return err
	}
	return errors.ConnectionFailed(target(inst.ConnectionString()), err)
}

func (f *Fixtures) attach(db docstore.Backend, bucket blobstore.Bucket) {
	var buckets []string
	if f.cfg.GridFS.Enabled {
		buckets = append(buckets, bucket.BucketName())
		f.files = blobstore.New(bucket, blobstore.WithLogger(f.log))
	}
	f.db = docstore.New(db,
		docstore.WithLogger(f.log),
		docstore.WithFilter(docstore.DefaultFilter(buckets...)),
	)
}

// Close drops the bucket, then the database, then disconnects and stops the
// server it started. Failures are logged, never returned, so Close is safe
// in deferred cleanup. Close on a closed or unstarted Fixtures is a no-op;
// a closed Fixtures may be started again.
func (f *Fixtures) Close(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return
	}
	f.started = false

	ctx, op := observability.StartOperation(ctx, f.tracer, f.metrics, observability.SpanClose)
	var errs []error
	if f.files != nil {
		if err := f.files.Reset(ctx); err != nil {
			f.log.Warn("bucket reset failed", logger.ErrorFields("close", err))
			errs = append(errs, err)
		}
	}
	if err := f.db.Drop(ctx); err != nil {
		f.log.Warn("database drop failed", logger.ErrorFields("close", err))
		errs = append(errs, err)
	}
	if f.client != nil {
		if err := f.client.Disconnect(ctx); err != nil {
			f.log.Warn("disconnect failed", logger.ErrorFields("close", err))
			errs = append(errs, err)
		}
	}
	if f.instance != nil {
		if err := f.stopInstance(ctx, f.instance); err != nil {
			errs = append(errs, err)
		}
	}
	_ = op.End(stderrors.Join(errs...))

	f.instance = nil
	f.client = nil
	f.uri = ""
	f.db = nil
	f.files = nil
}

func (f *Fixtures) stopInstance(ctx context.Context, inst ephemeral.Instance) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.Server.StopTimeout+5*time.Second)
	defer cancel()
	if err := inst.Stop(stopCtx); err != nil {
		f.log.Warn("server stop failed", logger.ErrorFields("stop", err))
		return err
	}
	return nil
}

// target returns the hosts of uri without credentials, for logs and errors.
func target(uri string) string {
	cs, err := connstring.Parse(uri)
	if err != nil || len(cs.Hosts) == 0 {
		return "mongodb"
	}
	return strings.Join(cs.Hosts, ",")
}
