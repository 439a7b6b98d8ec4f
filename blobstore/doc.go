// Package blobstore provides the storage abstraction used to replicate
// finished hit files off the processing host.
//
// Store is the interface for reading and writing data blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic writes via rename
//   - MemoryStore: in-memory store for tests
//   - s3.Store: Amazon S3 with parallel streaming uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Shipper ties a Store to the pipeline: it uploads each finished hit file
// under a deterministic key and, when configured, records the upload in a
// CommitLog (see s3.CommitLog for the DynamoDB-backed implementation).
package blobstore
