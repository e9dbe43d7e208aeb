// Package exemplar provides exemplar-based clustering for feature vectors and
// arbitrary items under any metric.
//
// Every cluster is represented by one of its own items (its center, or medoid), so
// the package works with metrics that have no notion of a mean, such as RMSD between
// molecular conformations.
//
// # Algorithms
//
//   - KCenters: greedy farthest-point seeding. Stops on a cluster radius, a cluster
//     count, or both.
//   - Hybrid: KCenters followed by a few K-Medoids rounds. This is the recommended
//     default: seeding alone tends to pick outliers as centers, and the medoid rounds
//     move each center toward the interior of its cluster.
//   - KMedoids: K-Medoids rounds from a random start.
//   - Refine: K-Medoids rounds on an existing result.
//   - Predict: assignment of new data to fixed centers.
//
// # Quick Start
//
//	data, _ := dataset.FromRows(rows)
//	metric, _ := exemplar.NamedMetric("euclidean")
//
//	res, err := exemplar.Hybrid(ctx, data, metric,
//	    exemplar.WithNClusters(3),
//	    exemplar.WithSeed(42),
//	)
//	// res.Assignments[i] is the label of row i, res.Centers[label] its center.
//
// # Partitioned data
//
// A dataset too large for one process can be row-sharded across workers. Each
// worker calls the same function with its own partition and a collective.Collectives
// handle; the workers agree on every center and the concatenation of their results,
// in rank order, equals the single-process result for the concatenated data.
//
//	g, _ := collective.NewGroup(len(shards))
//	_ = g.Run(ctx, func(ctx context.Context, c collective.Collectives) error {
//	    res, err := exemplar.KCenters(ctx, shards[c.Rank()], metric,
//	        exemplar.WithNClusters(10),
//	        exemplar.WithCollectives(c),
//	    )
//	    ...
//	})
//
// # Determinism
//
// All randomness comes from one seeded generator (WithSeed or WithRand). Ties
// between equally distant items resolve to the lowest global index, and ties between
// equally distant centers to the lowest label, so runs are reproducible.
package exemplar
