// Package hash provides the CRC32-Castagnoli checksum used for stored blobs.
//
// Result manifests record the checksum of every blob they reference, and the S3
// store sends the same checksum with uploads so the service can verify them.
package hash
