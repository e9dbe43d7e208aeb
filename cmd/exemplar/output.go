package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hupe1980/exemplar/blobstore"
	minioblob "github.com/hupe1980/exemplar/blobstore/minio"
	s3blob "github.com/hupe1980/exemplar/blobstore/s3"
)

// openStore resolves an output location:
//
//	file://dir or dir                         local directory
//	mem://                                    in-process (discarded on exit)
//	s3://bucket/prefix?region=r&endpoint=u    Amazon S3 or a compatible endpoint
//	minio://host:port/bucket/prefix?secure=1  MinIO
func openStore(ctx context.Context, location string) (blobstore.BlobStore, error) {
	if !strings.Contains(location, "://") {
		return blobstore.NewLocalStore(location), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", location, err)
	}
	q := u.Query()

	switch u.Scheme {
	case "file":
		dir := u.Host + u.Path
		if dir == "" {
			return nil, fmt.Errorf("output %q: missing directory", location)
		}
		return blobstore.NewLocalStore(dir), nil

	case "mem":
		return blobstore.NewMemoryStore(), nil

	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("output %q: missing bucket", location)
		}
		opts := []s3blob.Option{s3blob.WithPrefix(strings.TrimPrefix(u.Path, "/"))}
		if r := q.Get("region"); r != "" {
			opts = append(opts, s3blob.WithRegion(r))
		}
		if e := q.Get("endpoint"); e != "" {
			opts = append(opts, s3blob.WithEndpoint(e))
		}
		return s3blob.New(ctx, u.Host, opts...)

	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return nil, fmt.Errorf("output %q: want minio://host/bucket[/prefix]", location)
		}
		secure := false
		if v := q.Get("secure"); v != "" {
			if secure, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("output %q: secure: %w", location, err)
			}
		}
		store, err := minioblob.New(u.Host, bucket,
			minioblob.WithPrefix(prefix),
			minioblob.WithSecure(secure),
			minioblob.WithRegion(q.Get("region")),
		)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("output %q: %w", location, err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("output %q: unsupported scheme %q", location, u.Scheme)
	}
}
