package blobstore

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kbukum/mongofixtures/docstore"
	"github.com/kbukum/mongofixtures/errors"
)

// DefaultBucketName is the GridFS bucket name used when none is configured.
const DefaultBucketName = "fs"

// GridFSBucket adapts a *mongo.GridFSBucket to Bucket.
type GridFSBucket struct {
	bucket *mongo.GridFSBucket
	name   string
}

var _ Bucket = (*GridFSBucket)(nil)

// NewGridFSBucket opens bucket name in db. A chunkSize of zero keeps the
// driver default of 255 KiB.
func NewGridFSBucket(db *mongo.Database, name string, chunkSize int32) *GridFSBucket {
	if name == "" {
		name = DefaultBucketName
	}
	opts := options.GridFSBucket().SetName(name)
	if chunkSize > 0 {
		opts.SetChunkSizeBytes(chunkSize)
	}
	return &GridFSBucket{bucket: db.GridFSBucket(opts), name: name}
}

func (b *GridFSBucket) BucketName() string { return b.name }

// Drop removes the files collection, then the chunks collection.
func (b *GridFSBucket) Drop(ctx context.Context) error {
	if err := b.bucket.Drop(ctx); err != nil {
		if docstore.IsNamespaceNotFound(err) {
			return errors.NamespaceAbsent(b.name, err)
		}
		return errors.DatabaseError("drop bucket", err).WithDetail("bucket", b.name)
	}
	return nil
}

func (b *GridFSBucket) OpenUploadStream(ctx context.Context, filename string) (UploadStream, error) {
	up, err := b.bucket.OpenUploadStream(ctx, filename)
	if err != nil {
		return nil, err
	}
	return up, nil
}

func (b *GridFSBucket) OpenDownloadStream(ctx context.Context, id any) (io.ReadCloser, error) {
	ds, err := b.bucket.OpenDownloadStream(ctx, id)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (b *GridFSBucket) Find(ctx context.Context) ([]FileRecord, error) {
	cur, err := b.bucket.Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.DatabaseError("list files", err).WithDetail("bucket", b.name)
	}
	defer cur.Close(ctx)

	records := []FileRecord{}
	for cur.Next(ctx) {
		var f mongo.GridFSFile
		if err := cur.Decode(&f); err != nil {
			return nil, errors.DatabaseError("decode file", err).WithDetail("bucket", b.name)
		}
		records = append(records, FileRecord{
			ID:         f.ID,
			Filename:   f.Name,
			Length:     f.Length,
			ChunkSize:  f.ChunkSize,
			UploadDate: f.UploadDate,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, errors.DatabaseError("list files", err).WithDetail("bucket", b.name)
	}
	return records, nil
}
