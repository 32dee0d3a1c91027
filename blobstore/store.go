package blobstore

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/logger"
)

// File is one downloaded file. Text is set when the download was
// materialized, Stream otherwise.
type File struct {
	ID       any
	Filename string
	Length   int64
	Text     string
	Stream   io.ReadCloser
}

// Files maps a filename to its downloaded file.
type Files map[string]File

// Texts returns filename to materialized text.
func (f Files) Texts() map[string]string {
	out := make(map[string]string, len(f))
	for name, file := range f {
		out[name] = file.Text
	}
	return out
}

// Close closes every lazy stream in f.
func (f Files) Close() error {
	var errs []error
	for _, file := range f {
		if file.Stream != nil {
			if err := file.Stream.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

// Store resets, fills and dumps one bucket.
type Store struct {
	bucket Bucket
	log    *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l.WithComponent("blobstore") }
}

// New creates a Store over bucket.
func New(bucket Bucket, opts ...Option) *Store {
	s := &Store{bucket: bucket, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bucket returns the underlying bucket.
func (s *Store) Bucket() Bucket { return s.bucket }

// Reset drops the bucket's metadata and chunks. A bucket that does not exist
// is not an error; any other failure is.
func (s *Store) Reset(ctx context.Context) error {
	err := s.bucket.Drop(ctx)
	if errors.HasCode(err, errors.ErrCodeNamespaceAbsent) {
		s.log.Debug("bucket already absent", logger.Fields(logger.FieldBucket, s.bucket.BucketName()))
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Debug("bucket dropped", logger.Fields(logger.FieldBucket, s.bucket.BucketName()))
	return nil
}

// Upload streams src into a new file named filename. The file exists only
// once the bucket acknowledges the finalized upload. When src fails midway
// the partial chunks are left for the next Reset and UPLOAD_ERROR is
// returned.
func (s *Store) Upload(ctx context.Context, filename string, src Source) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return errors.UploadError(filename, err)
	}
	defer rc.Close()

	up, err := s.bucket.OpenUploadStream(ctx, filename)
	if err != nil {
		return errors.UploadError(filename, err)
	}
	n, err := io.Copy(up, rc)
	if err != nil {
		return errors.UploadError(filename, err)
	}
	if err := up.Close(); err != nil {
		return errors.UploadError(filename, err)
	}
	s.log.Debug("file uploaded", logger.Fields(logger.FieldFilename, filename, "bytes", n))
	return nil
}

// UploadAll uploads every entry concurrently. All uploads run to completion
// before the first failure, if any, is returned.
func (s *Store) UploadAll(ctx context.Context, files map[string]Source) error {
	var g errgroup.Group
	for name, src := range files {
		g.Go(func() error {
			return s.Upload(ctx, name, src)
		})
	}
	return g.Wait()
}

// List returns the metadata of every finalized file.
func (s *Store) List(ctx context.Context) ([]FileRecord, error) {
	return s.bucket.Find(ctx)
}

// Download opens the file described by rec. With materialize the whole
// content is read and returned as UTF-8 text, each invalid byte replaced by
// U+FFFD. Otherwise an unread stream is returned and the caller closes it.
func (s *Store) Download(ctx context.Context, rec FileRecord, materialize bool) (File, error) {
	file := File{ID: rec.ID, Filename: rec.Filename, Length: rec.Length}

	rs, err := s.bucket.OpenDownloadStream(ctx, rec.ID)
	if err != nil {
		return File{}, errors.DownloadError(rec.Filename, err)
	}
	if !materialize {
		file.Stream = rs
		return file, nil
	}
	defer rs.Close()

	data, err := io.ReadAll(rs)
	if err != nil {
		return File{}, errors.DownloadError(rec.Filename, err)
	}
	file.Text = decodeText(data)
	return file, nil
}

// DumpAll downloads every file of the bucket. Every per-file download is
// awaited before returning, so an empty bucket yields an empty, non-nil
// map. On failure the streams already opened are closed.
func (s *Store) DumpAll(ctx context.Context, materialize bool) (Files, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out = make(Files, len(records))
		g   errgroup.Group
	)
	for _, rec := range records {
		g.Go(func() error {
			file, err := s.Download(ctx, rec, materialize)
			if err != nil {
				return err
			}
			mu.Lock()
			out[rec.Filename] = file
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = out.Close()
		return nil, err
	}
	s.log.Debug("bucket dumped", logger.Fields(
		logger.FieldBucket, s.bucket.BucketName(),
		logger.FieldFiles, len(out),
	))
	return out, nil
}

// decodeText decodes data as UTF-8 with one U+FFFD per invalid byte.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return string([]rune(string(data)))
}
