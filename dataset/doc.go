// Package dataset provides the item collections clustered by exemplar.
//
// A Dataset is an ordered, immutable sequence of items. Clustering engines only need
// length, indexed access, contiguous views (used to split metric evaluation into
// parallel chunks) and subsets (used to materialize a center set as concrete items).
//
// # Implementations
//
//   - Vectors: a row-major float64 matrix, the natural shape for feature vectors and
//     flattened atomic coordinates.
//   - Items: a slice-backed collection of arbitrary values (e.g. opaque structural frames).
//
// # Partitions
//
// In distributed mode every worker holds one contiguous row-shard. Shard splits a
// dataset into such shards; the concatenation of the shards in rank order defines the
// global item order.
package dataset
