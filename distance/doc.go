// Package distance provides the built-in pairwise metrics for float64 feature vectors.
//
// # Supported Metrics
//
//   - MetricEuclidean: Euclidean (L2) distance
//   - MetricSquaredEuclidean: squared Euclidean distance
//   - MetricManhattan: Manhattan (L1) distance
//   - MetricRMSD: root mean square deviation of pre-aligned xyz coordinates
//   - MetricCosine: cosine distance (1 - cosine similarity)
//
// # Usage
//
//	m, _ := distance.ParseMetric("euclidean")
//	fn, _ := distance.Provider(m)
//	d := fn(a, b)
//
// Metrics are resolved to a function once; callers should hold on to the returned
// Func instead of dispatching on the Metric per call.
package distance
