// Package testutil provides an in-memory blobstore.Bucket.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/component"
	"github.com/kbukum/mongofixtures/errors"
)

// Op names a bucket operation for fault injection and call hooks.
type Op string

const (
	OpDrop     Op = "drop"
	OpUpload   Op = "upload"
	OpDownload Op = "download"
	OpFind     Op = "find"
)

// DefaultChunkSize matches the GridFS default of 255 KiB.
const DefaultChunkSize = 255 * 1024

// ErrMissingChunk is returned by a download stream when a chunk is absent.
var ErrMissingChunk = fmt.Errorf("chunk not found")

// Bucket stores files the way GridFS does: content is written as fixed-size
// chunks while the upload runs, and the metadata record appears only when
// the upload is closed. A bucket that was never written to, or was dropped,
// has no backing collections and reports NAMESPACE_ABSENT on Drop.
//
// Attached to a docstore testutil Backend, the bucket's collections share
// that database: they are listed and dumped with it, and dropping the
// database drops them too.
type Bucket struct {
	name      string
	chunkSize int

	mu         sync.Mutex
	files      map[bson.ObjectID]blobstore.FileRecord
	chunks     map[bson.ObjectID][][]byte
	hasFiles   bool
	hasChunks  bool
	chunkReads int
	faults     map[Op]error
	started    bool

	// OnCall, when set, is invoked before every operation.
	OnCall func(op Op, filename string)
}

var _ blobstore.Bucket = (*Bucket)(nil)

// NewBucket creates an empty in-memory bucket. A chunkSize of zero uses DefaultChunkSize.
func NewBucket(name string, chunkSize int) *Bucket {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Bucket{
		name:      name,
		chunkSize: chunkSize,
		files:     make(map[bson.ObjectID]blobstore.FileRecord),
		chunks:    make(map[bson.ObjectID][][]byte),
		faults:    make(map[Op]error),
	}
}

// FailOn makes op fail with err. A nil err clears the fault.
func (b *Bucket) FailOn(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, op)
		return
	}
	b.faults[op] = err
}

func (b *Bucket) enter(op Op, filename string) error {
	if b.OnCall != nil {
		b.OnCall(op, filename)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.faults[op]
}

// Collections returns the names of the backing collections that currently exist.
func (b *Bucket) Collections() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	if b.hasChunks {
		out = append(out, b.chunksCollection())
	}
	if b.hasFiles {
		out = append(out, b.filesCollection())
	}
	return out
}

func (b *Bucket) filesCollection() string  { return b.name + ".files" }
func (b *Bucket) chunksCollection() string { return b.name + ".chunks" }

// Documents renders a backing collection as the records GridFS stores.
func (b *Bucket) Documents(collection string) []bson.D {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []bson.D{}
	switch collection {
	case b.filesCollection():
		for _, rec := range b.sortedFiles() {
			out = append(out, bson.D{
				{Key: "_id", Value: rec.ID},
				{Key: "length", Value: rec.Length},
				{Key: "chunkSize", Value: rec.ChunkSize},
				{Key: "uploadDate", Value: bson.NewDateTimeFromTime(rec.UploadDate)},
				{Key: "filename", Value: rec.Filename},
			})
		}
	case b.chunksCollection():
		ids := make([]bson.ObjectID, 0, len(b.chunks))
		for id := range b.chunks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
		for _, id := range ids {
			for n, data := range b.chunks[id] {
				if data == nil {
					continue
				}
				out = append(out, bson.D{
					{Key: "_id", Value: bson.NewObjectID()},
					{Key: "files_id", Value: id},
					{Key: "n", Value: int32(n)},
					{Key: "data", Value: bson.Binary{Data: append([]byte(nil), data...)}},
				})
			}
		}
	}
	return out
}

// DropCollection drops one backing collection.
func (b *Bucket) DropCollection(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch collection {
	case b.filesCollection():
		b.files = make(map[bson.ObjectID]blobstore.FileRecord)
		b.hasFiles = false
	case b.chunksCollection():
		b.chunks = make(map[bson.ObjectID][][]byte)
		b.hasChunks = false
	}
}

func (b *Bucket) sortedFiles() []blobstore.FileRecord {
	out := make([]blobstore.FileRecord, 0, len(b.files))
	for _, rec := range b.files {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.Before(out[j].UploadDate) })
	return out
}

// ChunkCount returns the number of stored chunks, including chunks of
// abandoned uploads.
func (b *Bucket) ChunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.chunks {
		n += len(c)
	}
	return n
}

// ChunkReads returns how many chunks download streams have read so far.
func (b *Bucket) ChunkReads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunkReads
}

// RemoveChunk deletes chunk n of the file named filename to simulate corruption.
func (b *Bucket) RemoveChunk(filename string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, rec := range b.files {
		if rec.Filename == filename && n < len(b.chunks[id]) {
			b.chunks[id][n] = nil
		}
	}
}

func (b *Bucket) BucketName() string { return b.name }

func (b *Bucket) Drop(ctx context.Context) error {
	if err := b.enter(OpDrop, ""); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasFiles && !b.hasChunks {
		return errors.NamespaceAbsent(b.name, nil)
	}
	b.wipe()
	return nil
}

func (b *Bucket) OpenUploadStream(ctx context.Context, filename string) (blobstore.UploadStream, error) {
	if err := b.enter(OpUpload, filename); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.hasFiles, b.hasChunks = true, true
	b.mu.Unlock()
	return &uploadStream{bucket: b, id: bson.NewObjectID(), filename: filename}, nil
}

func (b *Bucket) OpenDownloadStream(ctx context.Context, id any) (io.ReadCloser, error) {
	if err := b.enter(OpDownload, ""); err != nil {
		return nil, err
	}
	oid, ok := id.(bson.ObjectID)
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, found := b.files[oid]
	if !ok || !found {
		return nil, fmt.Errorf("file %v not found", id)
	}
	return &downloadStream{bucket: b, id: oid, total: numChunks(rec.Length, b.chunkSize)}, nil
}

func (b *Bucket) Find(ctx context.Context) ([]blobstore.FileRecord, error) {
	if err := b.enter(OpFind, ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedFiles(), nil
}

func numChunks(length int64, chunkSize int) int {
	return int((length + int64(chunkSize) - 1) / int64(chunkSize))
}

type uploadStream struct {
	bucket   *Bucket
	id       bson.ObjectID
	filename string
	buf      bytes.Buffer
	length   int64
	closed   bool
}

func (u *uploadStream) Write(p []byte) (int, error) {
	if u.closed {
		return 0, fmt.Errorf("upload stream closed")
	}
	u.buf.Write(p)
	u.length += int64(len(p))
	for u.buf.Len() >= u.bucket.chunkSize {
		u.flush(u.buf.Next(u.bucket.chunkSize))
	}
	return len(p), nil
}

func (u *uploadStream) flush(chunk []byte) {
	u.bucket.mu.Lock()
	defer u.bucket.mu.Unlock()
	u.bucket.chunks[u.id] = append(u.bucket.chunks[u.id], append([]byte(nil), chunk...))
}

func (u *uploadStream) Close() error {
	if u.closed {
		return fmt.Errorf("upload stream closed")
	}
	u.closed = true
	if u.buf.Len() > 0 {
		u.flush(u.buf.Bytes())
		u.buf.Reset()
	}
	b := u.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[u.id] = blobstore.FileRecord{
		ID:         u.id,
		Filename:   u.filename,
		Length:     u.length,
		ChunkSize:  int32(b.chunkSize),
		UploadDate: time.Now(),
	}
	return nil
}

type downloadStream struct {
	bucket *Bucket
	id     bson.ObjectID
	total  int
	next   int
	buf    []byte
	closed bool
}

func (d *downloadStream) Read(p []byte) (int, error) {
	if d.closed {
		return 0, fmt.Errorf("download stream closed")
	}
	for len(d.buf) == 0 {
		if d.next >= d.total {
			return 0, io.EOF
		}
		d.bucket.mu.Lock()
		chunks := d.bucket.chunks[d.id]
		var chunk []byte
		if d.next < len(chunks) {
			chunk = chunks[d.next]
		}
		d.bucket.chunkReads++
		d.bucket.mu.Unlock()
		if chunk == nil {
			return 0, ErrMissingChunk
		}
		d.buf = chunk
		d.next++
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

func (d *downloadStream) Close() error {
	d.closed = true
	return nil
}

func (b *Bucket) Name() string { return "blobstore-memory" }

func (b *Bucket) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("component already started")
	}
	b.started = true
	return nil
}

func (b *Bucket) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	b.wipe()
	return nil
}

func (b *Bucket) Health(ctx context.Context) component.Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return component.Health{Name: b.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: b.Name(), Status: component.StatusHealthy}
}

// Reset removes every file and chunk, including the backing collections.
func (b *Bucket) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wipe()
	return nil
}

type snapshot struct {
	files     map[bson.ObjectID]blobstore.FileRecord
	chunks    map[bson.ObjectID][][]byte
	hasFiles  bool
	hasChunks bool
}

// Snapshot returns a copy of files and chunks.
func (b *Bucket) Snapshot(ctx context.Context) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot{
		files:     cloneFiles(b.files),
		chunks:    cloneChunks(b.chunks),
		hasFiles:  b.hasFiles,
		hasChunks: b.hasChunks,
	}, nil
}

// Restore replaces the contents with a value returned by Snapshot.
func (b *Bucket) Restore(ctx context.Context, snap interface{}) error {
	s, ok := snap.(snapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot type: %T", snap)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files = cloneFiles(s.files)
	b.chunks = cloneChunks(s.chunks)
	b.hasFiles, b.hasChunks = s.hasFiles, s.hasChunks
	return nil
}

func (b *Bucket) wipe() {
	b.files = make(map[bson.ObjectID]blobstore.FileRecord)
	b.chunks = make(map[bson.ObjectID][][]byte)
	b.hasFiles, b.hasChunks = false, false
}

func cloneFiles(in map[bson.ObjectID]blobstore.FileRecord) map[bson.ObjectID]blobstore.FileRecord {
	out := make(map[bson.ObjectID]blobstore.FileRecord, len(in))
	for id, rec := range in {
		out[id] = rec
	}
	return out
}

func cloneChunks(in map[bson.ObjectID][][]byte) map[bson.ObjectID][][]byte {
	out := make(map[bson.ObjectID][][]byte, len(in))
	for id, chunks := range in {
		cp := make([][]byte, len(chunks))
		for i, c := range chunks {
			if c != nil {
				cp[i] = append([]byte(nil), c...)
			}
		}
		out[id] = cp
	}
	return out
}
