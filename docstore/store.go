package docstore

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/logger"
)

// Database is a dumped database: collection name to its filtered documents.
type Database map[string][]bson.D

// Store resets, fills and extracts one database.
type Store struct {
	backend Backend
	filter  Filter
	log     *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l.WithComponent("docstore") }
}

// WithFilter replaces the extraction filter.
func WithFilter(f Filter) Option {
	return func(s *Store) { s.filter = f }
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		filter:  DefaultFilter(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Reset drops every user collection. The collections of the filter's
// buckets belong to the blob store and are kept. A database without
// collections is left as is.
func (s *Store) Reset(ctx context.Context) error {
	names, err := s.backend.ListCollectionNames(ctx)
	if err != nil {
		return err
	}
	dropped := 0
	for _, name := range names {
		if isSystem(name) || s.filter.IsBucket(name) {
			continue
		}
		err := s.backend.DropCollection(ctx, name)
		if errors.HasCode(err, errors.ErrCodeNamespaceAbsent) {
			continue
		}
		if err != nil {
			return err
		}
		dropped++
	}
	s.log.Debug("collections dropped", logger.Fields(
		logger.FieldDatabase, s.backend.DatabaseName(),
		"collections", dropped,
	))
	return nil
}

// Drop drops the whole database, bucket collections included. A database
// that does not exist is not an error.
func (s *Store) Drop(ctx context.Context) error {
	err := s.backend.Drop(ctx)
	if errors.HasCode(err, errors.ErrCodeNamespaceAbsent) {
		s.log.Debug("database already absent", logger.Fields(logger.FieldDatabase, s.backend.DatabaseName()))
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Debug("database dropped", logger.Fields(logger.FieldDatabase, s.backend.DatabaseName()))
	return nil
}

// CreateAndInsert creates collection if needed and inserts docs in order.
// An empty docs still creates the collection. Any failure is reported as
// INSERT_ERROR for the whole batch.
func (s *Store) CreateAndInsert(ctx context.Context, collection string, docs []bson.D) error {
	if err := s.backend.CreateCollection(ctx, collection); err != nil {
		return errors.InsertError(collection, err)
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.backend.InsertMany(ctx, collection, docs); err != nil {
		return errors.InsertError(collection, err)
	}
	s.log.Debug("documents inserted", logger.Fields(
		logger.FieldCollection, collection,
		logger.FieldDocuments, len(docs),
	))
	return nil
}

// Collections lists the user collections of the database in sorted order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	names, err := s.backend.ListCollectionNames(ctx)
	if err != nil {
		return nil, err
	}
	out := names[:0:0]
	for _, n := range names {
		if !isSystem(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ExtractOption adjusts a single extraction.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	keepIDs     bool
	skipBuckets bool
}

// WithIdentifiers keeps the _id field in extracted documents.
func WithIdentifiers() ExtractOption {
	return func(c *extractConfig) { c.keepIDs = true }
}

// WithoutBuckets leaves the collections of the filter's buckets out.
func WithoutBuckets() ExtractOption {
	return func(c *extractConfig) { c.skipBuckets = true }
}

// ExtractAll reads every user collection concurrently and returns the
// filtered contents. Empty collections map to an empty, non-nil slice.
func (s *Store) ExtractAll(ctx context.Context, opts ...ExtractOption) (Database, error) {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	filter := s.filter
	if cfg.keepIDs {
		filter = filter.without("_id")
	}

	names, err := s.Collections(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out = make(Database, len(names))
		g   errgroup.Group
	)
	for _, name := range names {
		if cfg.skipBuckets && filter.IsBucket(name) {
			continue
		}
		g.Go(func() error {
			docs, err := s.backend.FindAll(ctx, name)
			if err != nil {
				return err
			}
			drop := filter.For(name)
			filtered := make([]bson.D, 0, len(docs))
			for _, doc := range docs {
				filtered = append(filtered, strip(doc, drop))
			}
			mu.Lock()
			out[name] = filtered
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// strip returns doc without the top-level fields in drop.
func strip(doc bson.D, drop FieldSet) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if !drop[e.Key] {
			out = append(out, e)
		}
	}
	return out
}
