// Package testutil provides fixtures and oracles for clustering tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Fixtures
//
//	data, labels := testutil.Blobs(seed, [][]float64{{0, 0}, {10, 10}}, 50, 0.5)
//	noise := testutil.Uniform(seed, 200, 3)
//	line := testutil.Line(0, 1, 2, 10)
//
// # Oracles
//
// Nearest assigns every row by exhaustive search; Recompute returns the distance of
// every row to its assigned center:
//
//	labels, dists := testutil.Nearest(data, centers, distance.Euclidean)
package testutil
