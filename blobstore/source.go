package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Source produces the content of one file entry.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// String is inline text content, written verbatim.
func String(s string) Source {
	return SourceFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	})
}

// Bytes is inline binary content.
func Bytes(b []byte) Source {
	return SourceFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	})
}

// Reader streams content from r. It can be opened once; r is closed after
// the upload when it implements io.Closer.
func Reader(r io.Reader) Source {
	return SourceFunc(func(context.Context) (io.ReadCloser, error) {
		if rc, ok := r.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(r), nil
	})
}
