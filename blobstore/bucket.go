package blobstore

import (
	"context"
	"io"
	"time"
)

// FileRecord is the metadata of one stored file.
type FileRecord struct {
	ID         any
	Filename   string
	Length     int64
	ChunkSize  int32
	UploadDate time.Time
}

// UploadStream receives file content. Close finalizes the upload by writing
// the metadata record; until then the file is not listed. An upload that is
// never closed leaves its chunks behind for the next Drop.
type UploadStream interface {
	io.Writer
	Close() error
}

// Bucket is the narrow chunked-file handle the Store needs.
//
// Drop must report a bucket that does not exist as an error carrying
// errors.ErrCodeNamespaceAbsent; every other failure is returned as is.
type Bucket interface {
	BucketName() string
	Drop(ctx context.Context) error
	OpenUploadStream(ctx context.Context, filename string) (UploadStream, error)
	OpenDownloadStream(ctx context.Context, id any) (io.ReadCloser, error)
	Find(ctx context.Context) ([]FileRecord, error)
}
