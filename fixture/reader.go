package fixture

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"

	"github.com/kbukum/mongofixtures/errors"
)

const lz4Ext = ".lz4"

// Kind is the declared content kind of a fixture reference.
type Kind int

const (
	// KindData is structured collection data.
	KindData Kind = iota
	// KindText is content read fully and returned as a string.
	KindText
	// KindStream is content returned as an unread byte stream.
	KindStream
)

// Reader resolves fixture paths relative to a root directory.
type Reader struct {
	fs   afero.Fs
	root string
}

// NewReader returns a Reader over fs rooted at root.
func NewReader(fs afero.Fs, root string) *Reader {
	return &Reader{fs: fs, root: root}
}

// NewOSReader returns a Reader over the operating system filesystem.
func NewOSReader(root string) *Reader {
	return NewReader(afero.NewOsFs(), root)
}

// Root returns the root directory of r.
func (r *Reader) Root() string { return r.root }

// Path joins path segments onto the root.
func (r *Reader) Path(path ...string) string {
	return filepath.Join(append([]string{r.root}, path...)...)
}

// Read resolves path as content of the given kind. The result is a Set, a
// string or an io.ReadCloser respectively.
func (r *Reader) Read(kind Kind, path ...string) (any, error) {
	switch kind {
	case KindData:
		return r.Data(path...)
	case KindText:
		return r.Text(path...)
	default:
		return r.Stream(path...)
	}
}

// Data reads and decodes a structured fixture file.
func (r *Reader) Data(path ...string) (Set, error) {
	full := r.Path(path...)
	format, ok := FormatOf(full)
	if !ok {
		return nil, errors.InvalidFixture(full, "unknown file extension")
	}
	data, err := r.readAll(full)
	if err != nil {
		return nil, err
	}
	return Decode(full, format, data)
}

// Text reads a fixture file fully.
func (r *Reader) Text(path ...string) (string, error) {
	data, err := r.readAll(r.Path(path...))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Stream opens a fixture file for reading. The caller closes it.
func (r *Reader) Stream(path ...string) (io.ReadCloser, error) {
	return r.open(r.Path(path...))
}

func (r *Reader) readAll(full string) ([]byte, error) {
	rc, err := r.open(full)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.InvalidFixture(full, "read failed").WithCause(err)
	}
	return data, nil
}

func (r *Reader) open(full string) (io.ReadCloser, error) {
	f, err := r.fs.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FixtureNotFound(full).WithCause(err)
		}
		return nil, errors.InvalidFixture(full, "open failed").WithCause(err)
	}
	if strings.HasSuffix(strings.ToLower(full), lz4Ext) {
		return &lz4File{Reader: lz4.NewReader(f), file: f}, nil
	}
	return f, nil
}

type lz4File struct {
	*lz4.Reader
	file afero.File
}

func (l *lz4File) Close() error { return l.file.Close() }
