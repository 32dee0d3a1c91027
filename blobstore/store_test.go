package blobstore_test

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/mongofixtures/blobstore"
	membucket "github.com/kbukum/mongofixtures/blobstore/testutil"
	"github.com/kbukum/mongofixtures/errors"
)

func newStore(t *testing.T, chunkSize int) (*blobstore.Store, *membucket.Bucket) {
	t.Helper()
	b := membucket.NewBucket("fs", chunkSize)
	return blobstore.New(b), b
}

// failingReader yields data, then fails.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestResetNeverCreatedBucket(t *testing.T) {
	s, _ := newStore(t, 0)
	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset on absent bucket: %v", err)
	}
}

func TestResetTwice(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t, 0)
	if err := s.Upload(ctx, "a.txt", blobstore.String("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("first Reset: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if got := b.Collections(); len(got) != 0 {
		t.Errorf("expected no backing collections, got %v", got)
	}
}

func TestResetPropagatesOtherErrors(t *testing.T) {
	s, b := newStore(t, 0)
	boom := stderrors.New("not authorized")
	b.FailOn(membucket.OpDrop, boom)
	if err := s.Reset(context.Background()); !stderrors.Is(err, boom) {
		t.Fatalf("expected drop error, got %v", err)
	}
}

func TestDumpEmptyBucket(t *testing.T) {
	s, _ := newStore(t, 0)
	files, err := s.DumpAll(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if files == nil || len(files) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", files)
	}
}

func TestUploadDumpRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, 4)
	in := map[string]blobstore.Source{
		"readme.txt": blobstore.String("hello gridfs"),
		"empty.txt":  blobstore.String(""),
		"stream.txt": blobstore.Reader(strings.NewReader("streamed content")),
	}
	if err := s.UploadAll(ctx, in); err != nil {
		t.Fatal(err)
	}
	files, err := s.DumpAll(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"readme.txt": "hello gridfs",
		"empty.txt":  "",
		"stream.txt": "streamed content",
	}
	if diff := cmp.Diff(want, files.Texts()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if files["readme.txt"].Length != int64(len("hello gridfs")) {
		t.Errorf("length = %d", files["readme.txt"].Length)
	}
}

func TestMaterializeReplacesInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"single byte", []byte{'a', 0xff, 'b'}, "a\uFFFDb"},
		{"one per byte", []byte{0xff, 0xfe, 'a'}, "\uFFFD\uFFFDa"},
		{"valid multibyte", []byte("h\u00e9llo"), "h\u00e9llo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newStore(t, 2)
			if err := s.Upload(ctx, "bin", blobstore.Bytes(tt.data)); err != nil {
				t.Fatal(err)
			}
			files, err := s.DumpAll(ctx, true)
			if err != nil {
				t.Fatal(err)
			}
			if got := files["bin"].Text; got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDumpLazyDoesNotRead(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t, 2)
	if err := s.Upload(ctx, "lazy.txt", blobstore.String("abcdef")); err != nil {
		t.Fatal(err)
	}
	files, err := s.DumpAll(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	defer files.Close()

	if n := b.ChunkReads(); n != 0 {
		t.Fatalf("expected no chunk reads before consumption, got %d", n)
	}
	f := files["lazy.txt"]
	if f.Stream == nil || f.Text != "" {
		t.Fatalf("expected unread stream, got %#v", f)
	}
	data, err := io.ReadAll(f.Stream)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abcdef" {
		t.Errorf("content = %q", data)
	}
	if n := b.ChunkReads(); n != 3 {
		t.Errorf("chunk reads = %d, want 3", n)
	}
}

func TestUploadSourceFailureLeavesPartial(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t, 2)
	boom := stderrors.New("source broke")
	src := blobstore.Reader(&failingReader{data: []byte("abcdef"), err: boom})

	err := s.Upload(ctx, "broken.txt", src)
	if !errors.HasCode(err, errors.ErrCodeUpload) {
		t.Fatalf("expected UPLOAD_ERROR, got %v", err)
	}
	if !stderrors.Is(err, boom) {
		t.Errorf("expected cause to be kept, got %v", err)
	}
	records, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("partial upload must not be listed, got %v", records)
	}
	if b.ChunkCount() == 0 {
		t.Error("expected partial chunks to remain until reset")
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if b.ChunkCount() != 0 {
		t.Error("expected reset to remove partial chunks")
	}
}

func TestUploadSourceOpenFailure(t *testing.T) {
	s, _ := newStore(t, 0)
	src := blobstore.SourceFunc(func(context.Context) (io.ReadCloser, error) {
		return nil, stderrors.New("no such file")
	})
	if err := s.Upload(context.Background(), "x", src); !errors.HasCode(err, errors.ErrCodeUpload) {
		t.Fatalf("expected UPLOAD_ERROR, got %v", err)
	}
}

func TestUploadAllWaitsForSiblings(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, 0)
	slow := blobstore.SourceFunc(func(context.Context) (io.ReadCloser, error) {
		time.Sleep(20 * time.Millisecond)
		return io.NopCloser(strings.NewReader("slow")), nil
	})
	bad := blobstore.SourceFunc(func(context.Context) (io.ReadCloser, error) {
		return nil, stderrors.New("bad")
	})

	err := s.UploadAll(ctx, map[string]blobstore.Source{"slow.txt": slow, "bad.txt": bad})
	if !errors.HasCode(err, errors.ErrCodeUpload) {
		t.Fatalf("expected UPLOAD_ERROR, got %v", err)
	}
	records, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Filename != "slow.txt" {
		t.Errorf("expected slow upload to finish, got %v", records)
	}
}

func TestDumpMissingChunk(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t, 2)
	if err := s.Upload(ctx, "torn.txt", blobstore.String("abcdef")); err != nil {
		t.Fatal(err)
	}
	b.RemoveChunk("torn.txt", 1)

	_, err := s.DumpAll(ctx, true)
	if !errors.HasCode(err, errors.ErrCodeDownload) {
		t.Fatalf("expected DOWNLOAD_ERROR, got %v", err)
	}
	if !stderrors.Is(err, membucket.ErrMissingChunk) {
		t.Errorf("expected missing chunk cause, got %v", err)
	}
}

func TestDumpOpenFailure(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t, 0)
	if err := s.Upload(ctx, "a.txt", blobstore.String("a")); err != nil {
		t.Fatal(err)
	}
	b.FailOn(membucket.OpDownload, stderrors.New("connection reset"))
	if _, err := s.DumpAll(ctx, false); !errors.HasCode(err, errors.ErrCodeDownload) {
		t.Fatalf("expected DOWNLOAD_ERROR, got %v", err)
	}
}
