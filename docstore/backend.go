package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Backend is the narrow database handle the Store needs.
//
// Drop and DropCollection must report a missing namespace as an error
// carrying errors.ErrCodeNamespaceAbsent, or succeed; every other failure is
// returned as is. CreateCollection must succeed when the collection already
// exists.
type Backend interface {
	// DatabaseName returns the name of the database the backend is bound to.
	DatabaseName() string
	Drop(ctx context.Context) error
	DropCollection(ctx context.Context, name string) error
	ListCollectionNames(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	// InsertMany inserts docs in order. It is not called with an empty slice.
	InsertMany(ctx context.Context, collection string, docs []bson.D) error
	// FindAll returns every document of collection in store order.
	FindAll(ctx context.Context, collection string) ([]bson.D, error)
}
