package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for shipping and retrieving immutable data blobs.
// The pipeline uses it to replicate finished hit files off the local disk;
// operational tooling uses it to fetch them back.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new blob for streaming writes. The blob's content
	// becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a small blob in one call.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64

	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Reader streams the whole blob.
	Reader(ctx context.Context) (io.ReadCloser, error)
}

// WritableBlob is a streaming write handle. Nothing is durable until Close
// returns nil.
type WritableBlob interface {
	io.WriteCloser
}
