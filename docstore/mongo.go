package docstore

import (
	"context"
	stderrors "errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kbukum/mongofixtures/errors"
)

// Server error codes the backends translate.
const (
	CodeNamespaceNotFound = 26
	CodeNamespaceExists   = 48
)

// MongoBackend adapts a *mongo.Database to Backend.
type MongoBackend struct {
	db *mongo.Database
}

var _ Backend = (*MongoBackend)(nil)

// NewMongoBackend wraps db.
func NewMongoBackend(db *mongo.Database) *MongoBackend {
	return &MongoBackend{db: db}
}

// Database returns the wrapped handle.
func (b *MongoBackend) Database() *mongo.Database { return b.db }

func (b *MongoBackend) DatabaseName() string { return b.db.Name() }

func (b *MongoBackend) Drop(ctx context.Context) error {
	if err := b.db.Drop(ctx); err != nil {
		if IsNamespaceNotFound(err) {
			return errors.NamespaceAbsent(b.db.Name(), err)
		}
		return errors.DatabaseError("drop", err)
	}
	return nil
}

func (b *MongoBackend) DropCollection(ctx context.Context, name string) error {
	if err := b.db.Collection(name).Drop(ctx); err != nil {
		if IsNamespaceNotFound(err) {
			return errors.NamespaceAbsent(b.db.Name()+"."+name, err)
		}
		return errors.DatabaseError("drop collection", err).WithDetail("collection", name)
	}
	return nil
}

func (b *MongoBackend) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := b.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.DatabaseError("list collections", err)
	}
	return names, nil
}

func (b *MongoBackend) CreateCollection(ctx context.Context, name string) error {
	err := b.db.CreateCollection(ctx, name)
	if err != nil && !HasServerCode(err, CodeNamespaceExists) {
		return err
	}
	return nil
}

func (b *MongoBackend) InsertMany(ctx context.Context, collection string, docs []bson.D) error {
	_, err := b.db.Collection(collection).InsertMany(ctx, docs)
	return err
}

func (b *MongoBackend) FindAll(ctx context.Context, collection string) ([]bson.D, error) {
	cur, err := b.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.DatabaseError("find", err).WithDetail("collection", collection)
	}
	docs := []bson.D{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.DatabaseError("read cursor", err).WithDetail("collection", collection)
	}
	return docs, nil
}

// HasServerCode reports whether err carries the given server error code.
func HasServerCode(err error, code int) bool {
	var se mongo.ServerError
	return stderrors.As(err, &se) && se.HasErrorCode(code)
}

// IsNamespaceNotFound reports whether err is the server's answer to an
// operation on a namespace that does not exist. Old servers send only the
// "ns not found" message without a code.
func IsNamespaceNotFound(err error) bool {
	var se mongo.ServerError
	if !stderrors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(CodeNamespaceNotFound) || se.HasErrorMessage("ns not found")
}
