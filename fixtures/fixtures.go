package fixtures

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/coerce"
	"github.com/kbukum/mongofixtures/docstore"
	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/fixture"
	"github.com/kbukum/mongofixtures/logger"
	"github.com/kbukum/mongofixtures/observability"
)

// ServiceName identifies the library in logs and telemetry.
const ServiceName = "mongofixtures"

// Fixtures populates, dumps and clears one database and, with GridFS
// enabled, one bucket.
//
// Operations may be called from several goroutines, but overlapping
// Populate and Clear calls on the same database race on its contents.
type Fixtures struct {
	cfg     Config
	log     *logger.Logger
	format  coerce.Rules
	tracer  trace.Tracer
	metrics *observability.Metrics
	fs      afero.Fs
	reader  *fixture.Reader

	provider      ephemeral.Provider
	dbBackend     docstore.Backend
	bucketBackend blobstore.Bucket

	mu       sync.Mutex
	started  bool
	instance ephemeral.Instance
	client   *mongo.Client
	uri      string
	db       *docstore.Store
	files    *blobstore.Store
}

// New creates an unstarted Fixtures. cfg defaults are applied but cfg is not
// validated; LoadConfig does that.
func New(cfg Config, opts ...Option) *Fixtures {
	cfg.ApplyDefaults()
	f := &Fixtures{
		cfg:    cfg,
		tracer: observability.Tracer(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.New(&f.cfg.Logging, ServiceName)
	}
	f.log = f.log.WithComponent("fixtures")
	f.reader = fixture.NewReader(f.fs, f.cfg.Fixtures.RootPath)
	return f
}

// Open creates and starts a Fixtures.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Fixtures, error) {
	f := New(cfg, opts...)
	if err := f.Start(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Config returns the configuration with defaults applied.
func (f *Fixtures) Config() Config { return f.cfg }

// ConnectionString returns the server URI with the fixture database in its
// path. It is empty before Start and when backends were injected.
func (f *Fixtures) ConnectionString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uri
}

// DatabaseName returns the name of the fixture database, or "" before Start.
func (f *Fixtures) DatabaseName() string {
	db, err := f.docs()
	if err != nil {
		return ""
	}
	return db.Backend().DatabaseName()
}

func (f *Fixtures) docs() (*docstore.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil, errors.NotStarted("fixtures")
	}
	return f.db, nil
}

func (f *Fixtures) bucket() (*blobstore.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil, errors.NotStarted("fixtures")
	}
	if f.files == nil {
		return nil, errors.InvalidConfig("gridfs is not enabled")
	}
	return f.files, nil
}

func (f *Fixtures) operation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *observability.Operation) {
	if db := f.DatabaseName(); db != "" {
		attrs = append(attrs, attribute.String(observability.AttrDatabase, db))
	}
	return observability.StartOperation(ctx, f.tracer, f.metrics, name, attrs...)
}

func (f *Fixtures) fileOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *observability.Operation) {
	attrs = append(attrs, attribute.String(observability.AttrBucket, f.cfg.GridFS.BucketName))
	return f.operation(ctx, name, attrs...)
}

// Populate drops every collection outside the GridFS bucket, then inserts set. Format rules run first, then
// _id coercion when fixtures.use_object_id is set. Every document is
// transformed before anything is inserted, so a coercion failure leaves an
// empty database. Collections are inserted concurrently and all of them
// settle before the first failure is returned.
func (f *Fixtures) Populate(ctx context.Context, set fixture.Set) error {
	n := 0
	for _, docs := range set {
		n += len(docs)
	}
	ctx, op := f.operation(ctx, observability.SpanPopulate,
		attribute.Int(observability.AttrCollections, len(set)),
		attribute.Int(observability.AttrDocuments, n),
	)
	return op.End(f.populate(ctx, set, true))
}

func (f *Fixtures) populate(ctx context.Context, set fixture.Set, transform bool) error {
	db, err := f.docs()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := db.Reset(ctx); err != nil {
		return err
	}

	batches := make(map[string][]bson.D, len(set))
	for name, docs := range set {
		if transform {
			docs, err = coerce.Documents(name, docs, f.format, f.cfg.Fixtures.UseObjectID)
			if err != nil {
				return err
			}
		}
		batches[name] = docs
	}

	var g errgroup.Group
	for name, docs := range batches {
		g.Go(func() error {
			if err := db.CreateAndInsert(ctx, name, docs); err != nil {
				return err
			}
			if f.metrics != nil {
				f.metrics.RecordDocuments(ctx, name, len(docs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.log.Debug("database populated", logger.Fields(
		logger.FieldDatabase, db.Backend().DatabaseName(),
		"collections", len(batches),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return nil
}

// PopulateFixture reads a data fixture under fixtures.root_path and
// populates the database with it.
func (f *Fixtures) PopulateFixture(ctx context.Context, path ...string) error {
	set, err := f.reader.Data(path...)
	if err != nil {
		return err
	}
	return f.Populate(ctx, set)
}

// Dump returns every user collection with _id and __v removed. The bucket's
// files and chunks collections are included with their implicit GridFS
// fields removed. WithIdentifiers keeps _id; docstore.WithoutBuckets leaves
// the bucket out.
func (f *Fixtures) Dump(ctx context.Context, opts ...docstore.ExtractOption) (docstore.Database, error) {
	ctx, op := f.operation(ctx, observability.SpanDump)
	db, err := f.docs()
	if err != nil {
		return nil, op.End(err)
	}
	out, err := db.ExtractAll(ctx, opts...)
	if err != nil {
		return nil, op.End(err)
	}
	op.SetAttributes(attribute.Int(observability.AttrCollections, len(out)))
	return out, op.End(nil)
}

// Clear drops every collection of the database except the GridFS bucket's
// files and chunks collections.
func (f *Fixtures) Clear(ctx context.Context) error {
	ctx, op := f.operation(ctx, observability.SpanClear)
	db, err := f.docs()
	if err != nil {
		return op.End(err)
	}
	return op.End(db.Reset(ctx))
}

// PopulateFiles drops the bucket, then uploads files concurrently. All
// uploads settle before the first failure is returned.
func (f *Fixtures) PopulateFiles(ctx context.Context, files map[string]blobstore.Source) error {
	ctx, op := f.fileOperation(ctx, observability.SpanPopulateFiles, attribute.Int(observability.AttrFiles, len(files)))
	return op.End(f.populateFiles(ctx, files))
}

func (f *Fixtures) populateFiles(ctx context.Context, files map[string]blobstore.Source) error {
	bs, err := f.bucket()
	if err != nil {
		return err
	}
	if err := bs.Reset(ctx); err != nil {
		return err
	}
	if err := bs.UploadAll(ctx, files); err != nil {
		return err
	}
	if f.metrics != nil {
		f.metrics.RecordFiles(ctx, bs.Bucket().BucketName(), len(files))
	}
	f.log.Debug("bucket populated", logger.Fields(
		logger.FieldBucket, bs.Bucket().BucketName(),
		logger.FieldFiles, len(files),
	))
	return nil
}

// DumpFiles downloads every file of the bucket. With materialize each File
// carries its content as text; otherwise it carries an unread Stream the
// caller must close.
func (f *Fixtures) DumpFiles(ctx context.Context, materialize bool) (blobstore.Files, error) {
	ctx, op := f.fileOperation(ctx, observability.SpanDumpFiles, attribute.Bool(observability.AttrMaterialize, materialize))
	bs, err := f.bucket()
	if err != nil {
		return nil, op.End(err)
	}
	out, err := bs.DumpAll(ctx, materialize)
	if err != nil {
		return nil, op.End(err)
	}
	op.SetAttributes(attribute.Int(observability.AttrFiles, len(out)))
	return out, op.End(nil)
}

// ClearFiles drops the bucket. The database is left alone.
func (f *Fixtures) ClearFiles(ctx context.Context) error {
	ctx, op := f.fileOperation(ctx, observability.SpanClearFiles)
	bs, err := f.bucket()
	if err != nil {
		return op.End(err)
	}
	return op.End(bs.Reset(ctx))
}

// FileFixture returns a Source streaming a fixture file under
// fixtures.root_path. The file is opened on upload.
func (f *Fixtures) FileFixture(path ...string) blobstore.Source {
	return blobstore.SourceFunc(func(context.Context) (io.ReadCloser, error) {
		return f.reader.Stream(path...)
	})
}

// TextFixture returns a Source holding the content of a fixture file read
// on upload.
func (f *Fixtures) TextFixture(path ...string) blobstore.Source {
	return blobstore.SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		text, err := f.reader.Text(path...)
		if err != nil {
			return nil, err
		}
		return blobstore.String(text).Open(ctx)
	})
}
