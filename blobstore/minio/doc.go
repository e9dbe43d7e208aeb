// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object store. This package uses the MinIO Go client,
// which also works against Ceph, SeaweedFS and Garage.
//
// # Basic Usage
//
//	store, err := minioblob.New("localhost:9000", "results",
//	    minioblob.WithPrefix("clustering/"),
//	    minioblob.WithStaticCredentials("minioadmin", "minioadmin"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Without explicit credentials New reads MINIO_ACCESS_KEY / MINIO_SECRET_KEY and
// falls back to the AWS_* environment variables.
package minio
