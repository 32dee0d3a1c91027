// Package testutil provides an in-memory docstore.Backend.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kbukum/mongofixtures/component"
	"github.com/kbukum/mongofixtures/docstore"
	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/testutil"
)

// Op names a backend operation for fault injection and call hooks.
type Op string

const (
	OpDrop           Op = "drop"
	OpDropCollection Op = "drop_collection"
	OpList           Op = "list"
	OpCreate         Op = "create"
	OpInsert         Op = "insert"
	OpFind           Op = "find"
)

// Namespace is a set of collections another fake keeps in the same
// database, such as the files and chunks of an in-memory bucket. Attached
// namespaces are listed, read and dropped through the Backend the way a
// server would.
type Namespace interface {
	Collections() []string
	Documents(collection string) []bson.D
	DropCollection(collection string)
}

// Backend keeps collections in memory as BSON, so documents read back carry
// the same types a server would return. Documents without an _id get a new
// ObjectID prepended, and a duplicate _id fails the whole batch.
//
// Dropping an empty database or a missing collection reports
// NAMESPACE_ABSENT, which exercises the suppression paths of docstore.Store.
type Backend struct {
	name        string
	collections map[string][]bson.Raw
	attached    []Namespace
	faults      map[string]error
	started     bool
	mu          sync.RWMutex

	// OnCall, when set, is invoked before every operation.
	OnCall func(op Op, collection string)
}

var (
	_ docstore.Backend       = (*Backend)(nil)
	_ component.Component    = (*Backend)(nil)
	_ testutil.TestComponent = (*Backend)(nil)
)

// NewBackend creates an empty in-memory database named name.
func NewBackend(name string) *Backend {
	return &Backend{
		name:        name,
		collections: make(map[string][]bson.Raw),
		faults:      make(map[string]error),
	}
}

// FailOn makes op fail with err. An empty collection matches every collection.
// A nil err clears the fault.
func (b *Backend) FailOn(op Op, collection string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := faultKey(op, collection)
	if err == nil {
		delete(b.faults, key)
		return
	}
	b.faults[key] = err
}

func faultKey(op Op, collection string) string {
	return string(op) + ":" + collection
}

func (b *Backend) enter(op Op, collection string) error {
	if b.OnCall != nil {
		b.OnCall(op, collection)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err, ok := b.faults[faultKey(op, collection)]; ok {
		return err
	}
	return b.faults[faultKey(op, "")]
}

// Attach makes ns part of the database.
func (b *Backend) Attach(ns Namespace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = append(b.attached, ns)
}

// owner returns the attached namespace holding collection, if any.
func (b *Backend) owner(collection string) Namespace {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ns := range b.attached {
		for _, name := range ns.Collections() {
			if name == collection {
				return ns
			}
		}
	}
	return nil
}

func (b *Backend) DatabaseName() string { return b.name }

func (b *Backend) Drop(ctx context.Context) error {
	if err := b.enter(OpDrop, ""); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	empty := len(b.collections) == 0
	for _, ns := range b.attached {
		for _, name := range ns.Collections() {
			empty = false
			ns.DropCollection(name)
		}
	}
	if empty {
		return errors.NamespaceAbsent(b.name, nil)
	}
	b.collections = make(map[string][]bson.Raw)
	return nil
}

func (b *Backend) DropCollection(ctx context.Context, name string) error {
	if err := b.enter(OpDropCollection, name); err != nil {
		return err
	}
	if ns := b.owner(name); ns != nil {
		ns.DropCollection(name)
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; !ok {
		return errors.NamespaceAbsent(b.name+"."+name, nil)
	}
	delete(b.collections, name)
	return nil
}

func (b *Backend) ListCollectionNames(ctx context.Context) ([]string, error) {
	if err := b.enter(OpList, ""); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.collections))
	for name := range b.collections {
		names = append(names, name)
	}
	for _, ns := range b.attached {
		names = append(names, ns.Collections()...)
	}
	return names, nil
}

func (b *Backend) CreateCollection(ctx context.Context, name string) error {
	if err := b.enter(OpCreate, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; !ok {
		b.collections[name] = nil
	}
	return nil
}

func (b *Backend) InsertMany(ctx context.Context, collection string, docs []bson.D) error {
	if err := b.enter(OpInsert, collection); err != nil {
		return err
	}

	raws := make([]bson.Raw, 0, len(docs))
	for i, doc := range docs {
		if !hasID(doc) {
			doc = append(bson.D{{Key: "_id", Value: bson.NewObjectID()}}, doc...)
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		raws = append(raws, raw)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.collections[collection]
	for _, raw := range raws {
		id := raw.Lookup("_id")
		for _, other := range existing {
			if other.Lookup("_id").Equal(id) {
				return fmt.Errorf("E11000 duplicate key error collection: %s.%s dup key: { _id: %s }", b.name, collection, id)
			}
		}
		existing = append(existing, raw)
	}
	b.collections[collection] = existing
	return nil
}

func (b *Backend) FindAll(ctx context.Context, collection string) ([]bson.D, error) {
	if err := b.enter(OpFind, collection); err != nil {
		return nil, err
	}
	if ns := b.owner(collection); ns != nil {
		return ns.Documents(collection), nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	docs := make([]bson.D, 0, len(b.collections[collection]))
	for _, raw := range b.collections[collection] {
		var d bson.D
		if err := bson.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func hasID(doc bson.D) bool {
	for _, e := range doc {
		if e.Key == "_id" {
			return true
		}
	}
	return false
}

// --- component.Component / testutil.TestComponent ---

func (b *Backend) Name() string { return "docstore-memory" }

func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("component already started")
	}
	b.started = true
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	b.collections = make(map[string][]bson.Raw)
	return nil
}

func (b *Backend) Health(ctx context.Context) component.Health {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.started {
		return component.Health{Name: b.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: b.Name(), Status: component.StatusHealthy}
}

// Reset drops every collection.
func (b *Backend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections = make(map[string][]bson.Raw)
	return nil
}

// Snapshot returns a copy of the raw contents, identifiers included.
func (b *Backend) Snapshot(ctx context.Context) (interface{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneCollections(b.collections), nil
}

// Restore replaces the contents with a value returned by Snapshot.
func (b *Backend) Restore(ctx context.Context, snapshot interface{}) error {
	snap, ok := snapshot.(map[string][]bson.Raw)
	if !ok {
		return fmt.Errorf("invalid snapshot type: expected map[string][]bson.Raw, got %T", snapshot)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections = cloneCollections(snap)
	return nil
}

func cloneCollections(in map[string][]bson.Raw) map[string][]bson.Raw {
	out := make(map[string][]bson.Raw, len(in))
	for name, raws := range in {
		cp := make([]bson.Raw, len(raws))
		for i, r := range raws {
			cp[i] = append(bson.Raw(nil), r...)
		}
		out[name] = cp
	}
	return out
}
