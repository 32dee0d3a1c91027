package testutil

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kbukum/mongofixtures/component"
	"github.com/kbukum/mongofixtures/errors"
)

func TestBackendDropEmptyReportsNamespaceAbsent(t *testing.T) {
	b := NewBackend("db")
	if err := b.Drop(context.Background()); !errors.HasCode(err, errors.ErrCodeNamespaceAbsent) {
		t.Fatalf("expected NAMESPACE_ABSENT, got %v", err)
	}
}

func TestBackendDropCollection(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("db")
	if err := b.DropCollection(ctx, "users"); !errors.HasCode(err, errors.ErrCodeNamespaceAbsent) {
		t.Fatalf("expected NAMESPACE_ABSENT, got %v", err)
	}
	if err := b.CreateCollection(ctx, "users"); err != nil {
		t.Fatal(err)
	}
	if err := b.DropCollection(ctx, "users"); err != nil {
		t.Fatal(err)
	}
	if names, _ := b.ListCollectionNames(ctx); len(names) != 0 {
		t.Errorf("collections = %v", names)
	}
}

func TestBackendAssignsIdentifiers(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("db")
	if err := b.InsertMany(ctx, "users", []bson.D{{{Key: "a", Value: 1}}}); err != nil {
		t.Fatal(err)
	}
	docs, err := b.FindAll(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if docs[0][0].Key != "_id" {
		t.Fatalf("expected _id first, got %v", docs[0])
	}
	if _, ok := docs[0][0].Value.(bson.ObjectID); !ok {
		t.Errorf("expected ObjectID, got %T", docs[0][0].Value)
	}
	if docs[0][1].Value != int32(1) {
		t.Errorf("expected int32 after BSON round trip, got %T", docs[0][1].Value)
	}
}

func TestBackendSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("db")
	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if h := b.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health = %v", h.Status)
	}
	if err := b.InsertMany(ctx, "users", []bson.D{{{Key: "a", Value: 1}}}); err != nil {
		t.Fatal(err)
	}
	snap, err := b.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if names, _ := b.ListCollectionNames(ctx); len(names) != 0 {
		t.Fatalf("expected no collections after reset, got %v", names)
	}
	if err := b.Restore(ctx, snap); err != nil {
		t.Fatal(err)
	}
	docs, _ := b.FindAll(ctx, "users")
	if len(docs) != 1 {
		t.Errorf("expected restored document, got %v", docs)
	}
	if err := b.Restore(ctx, "bogus"); err == nil {
		t.Error("expected error for invalid snapshot type")
	}
	if err := b.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
