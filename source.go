package blend

import (
	"fmt"
	"io"
	"os"
)

// ByteSource provides random access to the raw bytes of a blend file.
//
// Implementations exist for local files and HTTP range requests
// (package http). Sources are read in a single-owner, synchronous
// fashion; no call outlives its caller.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is cached at construction.
type fileSource struct {
	file *os.File
	size int64
}

func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat blend file: %w", err)
	}
	return &fileSource{file: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// Close releases the file handle.
func (fs *fileSource) Close() error {
	return fs.file.Close()
}

var _ ByteSource = (*fileSource)(nil)

// Open opens a blend file from the local filesystem.
//
// The handle is released by Close, or immediately if any step of the
// open sequence fails.
func Open(path string, opts ...Option) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open blend file: %w", err)
	}
	source, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return New(source, opts...)
}
