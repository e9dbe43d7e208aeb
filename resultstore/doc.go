// Package resultstore persists partitioned clustering results in a blobstore.
//
// A run is stored under its run id. Every worker writes its own rank directory with
// one blob per input segment plus a JSON manifest; rank 0 also writes the centers:
//
//	<run>/centers.json.zst
//	<run>/rank-0000/manifest.json
//	<run>/rank-0000/segment-00000.json.zst
//	<run>/rank-0001/manifest.json
//	...
//
// Segment and center blobs use a configurable codec.Codec and are optionally
// compressed with zstd or lz4. Load reassembles all ranks into one
// exemplar.Partitioned whose center locations refer to global segment numbers.
package resultstore
