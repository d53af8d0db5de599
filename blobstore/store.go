// Package blobstore abstracts where shard artifacts live.
//
// Code blobs, facet columns, codebooks and manifests are immutable once
// written; a Store only needs whole-blob creation and random-access reads.
// Implementations exist for the local filesystem (memory-mapped), plain
// memory, Amazon S3 and MinIO.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound);
// the default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store provides access to named immutable blobs.
type Store interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts writing a new blob. The blob becomes visible to Open
	// only after a successful Close.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	io.ReaderAt
	io.Closer

	// Size returns the blob size in bytes.
	Size() int64
}

// WritableBlob is a blob under construction. Writes are sequential; Close
// finalizes the blob.
type WritableBlob interface {
	io.WriteCloser
}

// Mappable is an optional Blob interface for zero-copy access to the whole
// blob. The returned slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}
