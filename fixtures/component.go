package fixtures

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/component"
	"github.com/kbukum/mongofixtures/docstore"
	"github.com/kbukum/mongofixtures/fixture"
	"github.com/kbukum/mongofixtures/testutil"
)

var (
	_ testutil.TestComponent = (*Fixtures)(nil)
	_ component.Describable  = (*Fixtures)(nil)
)

// Name implements component.Component.
func (f *Fixtures) Name() string { return "fixtures" }

// Stop closes f. It always returns nil.
func (f *Fixtures) Stop(ctx context.Context) error {
	f.Close(ctx)
	return nil
}

// Health pings the server. Injected backends are always healthy once started.
func (f *Fixtures) Health(ctx context.Context) component.Health {
	f.mu.Lock()
	started, client := f.started, f.client
	f.mu.Unlock()

	h := component.Health{Name: f.Name(), Status: component.StatusHealthy}
	switch {
	case !started:
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	case client != nil:
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			h.Status = component.StatusUnhealthy
			h.Message = err.Error()
		}
	}
	return h
}

// Describe implements component.Describable.
func (f *Fixtures) Describe() component.Description {
	details := "database=" + f.DatabaseName()
	if uri := f.ConnectionString(); uri != "" {
		details = fmt.Sprintf("%s %s", target(uri), details)
	}
	if f.cfg.GridFS.Enabled {
		details += " bucket=" + f.cfg.GridFS.BucketName
	}
	return component.Description{Type: "database", Details: details}
}

// Reset clears the bucket, when GridFS is enabled, then the database.
func (f *Fixtures) Reset(ctx context.Context) error {
	if f.cfg.GridFS.Enabled {
		if err := f.ClearFiles(ctx); err != nil {
			return err
		}
	}
	return f.Clear(ctx)
}

// Snapshot is the state captured by Fixtures.Snapshot.
type Snapshot struct {
	// Documents keep their _id.
	Documents docstore.Database
	// Files holds materialized file contents. Binary content that is not
	// valid UTF-8 does not survive a snapshot.
	Files map[string]string
}

// Snapshot dumps the documents with identifiers and, with GridFS enabled,
// the materialized files. The bucket's own collections are captured only as
// files. It returns a *Snapshot.
func (f *Fixtures) Snapshot(ctx context.Context) (interface{}, error) {
	docs, err := f.Dump(ctx, docstore.WithIdentifiers(), docstore.WithoutBuckets())
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Documents: docs}
	if f.cfg.GridFS.Enabled {
		files, err := f.DumpFiles(ctx, true)
		if err != nil {
			return nil, err
		}
		snap.Files = files.Texts()
	}
	return snap, nil
}

// Restore replaces the database and bucket with a *Snapshot. Documents are
// inserted as captured, without format rules or identifier coercion.
func (f *Fixtures) Restore(ctx context.Context, snapshot interface{}) error {
	snap, ok := snapshot.(*Snapshot)
	if !ok {
		return fmt.Errorf("fixtures: invalid snapshot type %T", snapshot)
	}

	if err := f.populate(ctx, fixture.Set(snap.Documents), false); err != nil {
		return err
	}
	if !f.cfg.GridFS.Enabled {
		return nil
	}
	files := make(map[string]blobstore.Source, len(snap.Files))
	for name, text := range snap.Files {
		files[name] = blobstore.String(text)
	}
	return f.PopulateFiles(ctx, files)
}
