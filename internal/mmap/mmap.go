// Package mmap provides read-only memory mapping of shard files.
//
// Code blobs are read once per chunk in ascending order, so mappings can be
// advised for sequential access where the platform supports it.
package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when accessing a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")

	// ErrInvalidSize is returned when the file size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
)

// AccessPattern hints how the mapped data will be read.
type AccessPattern int

const (
	// AccessDefault leaves the kernel's readahead policy untouched.
	AccessDefault AccessPattern = iota
	// AccessSequential expects ascending reads, as in a chunked scan.
	AccessSequential
	// AccessRandom expects scattered reads.
	AccessRandom
)

// Mapping is a read-only memory-mapped file. It owns the mapped region and
// unmaps it on Close.
type Mapping struct {
	data   []byte
	closed atomic.Bool
}

// Open maps the file at path read-only. An empty file yields a valid
// mapping with no data.
func Open(path string) (*Mapping, error) {
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
		return &Mapping{}, nil
	}
	if size < 0 || size != int64(int(size)) {
		return nil, ErrInvalidSize
	}

	data, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data}, nil
}

// Bytes returns the mapped region. The slice is only valid until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the mapped size in bytes.
func (m *Mapping) Size() int64 {
	return int64(len(m.data))
}

// Advise hints the access pattern to the kernel. Advisory only; failures
// to apply the hint are not reported.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the region. Idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return osUnmap(data)
}
