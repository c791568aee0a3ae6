// Package mmap maps files read-only into memory.
//
// Subspace snapshots use it to serve a file's state table in place
// instead of decoding a heap copy. A mapping stays valid until Close;
// Advise forwards access-pattern hints to the kernel where supported.
package mmap

import (
	"fmt"
	"os"
	"sync/atomic"
)

// File is a read-only memory mapping of a file. Obtain one from Open;
// concurrent reads are safe, Close is idempotent.
type File struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path. Empty files yield a valid empty mapping.
// The file descriptor is not retained; the mapping outlives it.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &File{}, nil
	}
	if size < 0 || size != int64(int(size)) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &File{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped contents. The slice is valid until Close and
// must not be written to.
func (m *File) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Advise hints the kernel about the upcoming access pattern. Hints are
// advisory; platforms without madvise accept and ignore them.
func (m *File) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// Close unmaps the file. It is idempotent.
func (m *File) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}
