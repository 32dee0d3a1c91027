package fixtures

import (
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/coerce"
	"github.com/kbukum/mongofixtures/docstore"
	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/logger"
	"github.com/kbukum/mongofixtures/observability"
)

// Option configures a Fixtures instance.
type Option func(*Fixtures)

// WithLogger sets the logger. The default is built from Config.Logging.
func WithLogger(l *logger.Logger) Option {
	return func(f *Fixtures) { f.log = l }
}

// WithFormat sets the per-collection value transforms applied on populate.
func WithFormat(rules coerce.Rules) Option {
	return func(f *Fixtures) { f.format = rules }
}

// WithTracer sets the tracer operations are recorded on.
func WithTracer(t trace.Tracer) Option {
	return func(f *Fixtures) { f.tracer = t }
}

// WithMetrics sets the operation metrics. Without it no metrics are recorded.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fixtures) { f.metrics = m }
}

// WithProvider replaces the server provider selected by Config.Server.
func WithProvider(p ephemeral.Provider) Option {
	return func(f *Fixtures) { f.provider = p }
}

// WithBackends makes Start use the given backends instead of connecting to a
// server. bucket may be nil only when GridFS is disabled; otherwise Start
// fails with INVALID_CONFIG.
func WithBackends(db docstore.Backend, bucket blobstore.Bucket) Option {
	return func(f *Fixtures) {
		f.dbBackend = db
		f.bucketBackend = bucket
	}
}

// WithFixtureFS sets the filesystem fixture files are read from.
func WithFixtureFS(fs afero.Fs) Option {
	return func(f *Fixtures) { f.fs = fs }
}
