// Package blobstore provides the storage abstraction that clustering results are
// written to.
//
// BlobStore is the interface for reading and writing named, write-once blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with atomic rename and mmap reads
//   - MemoryStore: In-process map, used by tests and the mem:// output
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// For cloud backends, implement ReadRange for efficient partial reads:
//
//	type Blob interface {
//	    io.Closer
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, len) (io.ReadCloser, error)
//	    Size() int64
//	}
package blobstore
