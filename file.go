package shard

import (
	"fmt"
	"os"
)

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file *os.File
	size int64
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat shard file: %w", err)
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

// File wraps a Reader with its underlying file handle.
// Close must be called to release file resources.
type File struct {
	*Reader
	file *os.File
}

// Close closes the underlying file.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Open opens a finalized shard file for reading.
//
// The index is loaded into memory; record content is read on demand. The
// returned File must be closed to release the file handle. A missing path
// surfaces the fs.ErrNotExist from the underlying open.
func Open(path string, opts ...ReaderOption) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open shard: %w", err)
	}

	source, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	r, err := NewReader(source, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{Reader: r, file: f}, nil
}

// Interface compliance for fileSource.
var _ ByteSource = (*fileSource)(nil)
