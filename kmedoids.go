package exemplar

import (
	"context"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/exemplar/collective"
	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/internal/membership"
	"github.com/hupe1980/exemplar/internal/tracker"
)

// KMedoids clusters data into WithNClusters clusters starting from distinct, uniformly
// drawn medoids (or the given initial centers), then runs WithMedoidUpdates refinement
// rounds (DefaultKMedoidsUpdates if unset).
func KMedoids[T any](ctx context.Context, data dataset.Dataset[T], metric MetricFunc[T], opts ...Option) (*Result[T], error) {
	o := applyOptions(opts)
	return execute(ctx, AlgorithmKMedoids, &o, func() (*Result[T], error) {
		if err := o.validateCommon(); err != nil {
			return nil, err
		}
		if !o.hasNClusters {
			return nil, &ErrNoStoppingCriterion{}
		}
		if o.nClusters <= 0 {
			return nil, configError("n_clusters must be positive, got %d", o.nClusters)
		}
		if o.hasClusterRadius {
			return nil, configError("cluster_radius has no effect on k-medoids")
		}
		if o.nInitItems > 0 {
			return nil, configError("k-medoids medoids must be items of the data")
		}
		rounds, err := o.medoidRounds(DefaultKMedoidsUpdates)
		if err != nil {
			return nil, err
		}

		r, err := newRun(ctx, AlgorithmKMedoids, data, metric, &o)
		if err != nil {
			return nil, err
		}
		if o.nClusters > r.total {
			return nil, dataError("n_clusters %d exceeds %d items", o.nClusters, r.total)
		}

		seeds, err := r.resolve(o.initCenters, o.initCenterIDs)
		if err != nil {
			return nil, err
		}
		if len(seeds) > 0 && len(seeds) != o.nClusters {
			return nil, configError("%d initial medoids for n_clusters %d", len(seeds), o.nClusters)
		}
		if len(seeds) == 0 {
			for _, g := range sampleDistinct(r.rng.IntN, r.total, o.nClusters) {
				rank, local, _ := collective.Locate(r.lengths, g)
				seeds = append(seeds, ItemID{Rank: rank, Index: local})
			}
		}
		for _, id := range seeds {
			if err := r.admit(ctx, id); err != nil {
				return nil, err
			}
		}

		if err := r.kmedoids(ctx, rounds); err != nil {
			return nil, err
		}
		return r.result(), nil
	})
}

// Refine runs K-Medoids rounds on a previous result over the same data. It runs
// WithMedoidUpdates rounds (DefaultHybridMedoidUpdates if unset) and leaves prev
// untouched.
func Refine[T any](ctx context.Context, data dataset.Dataset[T], metric MetricFunc[T], prev *Result[T], opts ...Option) (*Result[T], error) {
	o := applyOptions(opts)
	return execute(ctx, AlgorithmRefine, &o, func() (*Result[T], error) {
		if err := o.validateCommon(); err != nil {
			return nil, err
		}
		rounds, err := o.medoidRounds(DefaultHybridMedoidUpdates)
		if err != nil {
			return nil, err
		}
		if err := validatePrevious(prev, data); err != nil {
			return nil, err
		}

		r, err := newRun(ctx, AlgorithmRefine, data, metric, &o)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(r.lengths, prev.Lengths) {
			return nil, dataError("partition lengths %v differ from the previous result's %v", r.lengths, prev.Lengths)
		}
		r.tr = tracker.Restore(prev.Assignments, prev.Distances, len(prev.Centers))
		r.centers = slices.Clone(prev.Centers)
		r.centerIDs = slices.Clone(prev.CenterIDs)

		if err := r.kmedoids(ctx, rounds); err != nil {
			return nil, err
		}
		return r.result(), nil
	})
}

func validatePrevious[T any](prev *Result[T], data dataset.Dataset[T]) error {
	if prev == nil {
		return configError("previous result is nil")
	}
	if data == nil {
		return configError("data is nil")
	}
	k := len(prev.Centers)
	if k == 0 || len(prev.CenterIDs) != k {
		return configError("previous result does not identify its %d centers within the data", k)
	}
	if len(prev.Assignments) != data.Len() {
		return &ErrLengthMismatch{What: "assignments", Expected: data.Len(), Actual: len(prev.Assignments)}
	}
	if len(prev.Distances) != data.Len() {
		return &ErrLengthMismatch{What: "distances", Expected: data.Len(), Actual: len(prev.Distances)}
	}
	for _, label := range prev.Assignments {
		if label < 0 || label >= k {
			return &ErrIndexOutOfRange{Index: label, Len: k}
		}
	}
	return nil
}

// kmedoids runs up to rounds refinement rounds, stopping early after a round in
// which no proposal was accepted.
func (r *run[T]) kmedoids(ctx context.Context, rounds int) error {
	idx, err := membership.Build(r.tr.Assignments, len(r.centers))
	if err != nil {
		return err
	}
	r.tr.OnMove = idx.Move
	defer func() { r.tr.OnMove = nil }()

	for round := 0; round < rounds; round++ {
		start := time.Now()
		proposed, accepted := 0, 0
		for label := range r.centers {
			if err := ctx.Err(); err != nil {
				return err
			}
			tried, ok, err := r.proposeMedoid(ctx, idx, label)
			if err != nil {
				return err
			}
			if tried {
				proposed++
			}
			if ok {
				accepted++
			}
		}

		maxDist, err := r.maxDistance(ctx)
		if err != nil {
			return err
		}
		r.metrics.RecordMedoidRound(proposed, accepted, time.Since(start))
		r.log.LogMedoidRound(ctx, round, proposed, accepted, maxDist)
		if accepted == 0 {
			return nil
		}
	}
	return nil
}

// proposeMedoid draws a member of label uniformly and swaps it in as the medoid if
// the largest member distance does not grow. Every worker draws the same ordinal over
// the global membership, so all of them agree on the candidate.
func (r *run[T]) proposeMedoid(ctx context.Context, idx *membership.Index, label int) (proposed, accepted bool, err error) {
	id, candidate, ok, err := r.proposeCandidate(ctx, idx, label)
	if err != nil || !ok {
		return false, false, err
	}
	if id == r.centerIDs[label] {
		return true, false, nil
	}

	members := idx.Members(label)
	subset := r.data.Subset(members)
	memberDists, err := r.eval.distances(ctx, subset, candidate)
	if err != nil {
		return true, false, err
	}
	newCost := math.Inf(-1)
	if len(memberDists) > 0 {
		newCost = floats.Max(memberDists)
	}
	if newCost, err = collective.AllReduceMax(ctx, r.comm, newCost); err != nil {
		return true, false, err
	}
	oldCost, err := collective.AllReduceMax(ctx, r.comm, r.tr.MaxOver(members))
	if err != nil {
		return true, false, err
	}
	if newCost > oldCost {
		return true, false, nil
	}

	dists, err := r.eval.distances(ctx, r.data, candidate)
	if err != nil {
		return true, false, err
	}
	alt := make([][]float64, len(r.centers))
	if len(members) > 0 {
		for j, c := range r.centers {
			if j == label {
				continue
			}
			if alt[j], err = r.eval.distances(ctx, subset, c); err != nil {
				return true, false, err
			}
		}
	}
	r.tr.Swap(label, dists, members, alt)
	r.centers[label] = candidate
	r.centerIDs[label] = id
	return true, true, nil
}

// proposeCandidate draws one member of label uniformly over the members of every
// worker. It reports false when the cluster has no members anywhere.
func (r *run[T]) proposeCandidate(ctx context.Context, idx *membership.Index, label int) (ItemID, T, bool, error) {
	var zero T
	counts, err := r.comm.AllGatherInt(ctx, idx.Count(label))
	if err != nil {
		return ItemID{}, zero, false, err
	}
	_, total := collective.Offsets(counts)
	if total == 0 {
		return ItemID{}, zero, false, nil
	}

	owner, ordinal, _ := collective.Locate(counts, r.rng.IntN(total))
	local := -1
	if r.comm.Rank() == owner {
		if local, err = idx.Select(label, ordinal); err != nil {
			return ItemID{}, zero, false, err
		}
	}
	id, candidate, err := r.fetchLocal(ctx, owner, local)
	if err != nil {
		return ItemID{}, zero, false, err
	}
	return id, candidate, true, nil
}

// sampleDistinct draws k distinct integers from [0, n) with Floyd's algorithm.
// The result is in draw order.
func sampleDistinct(intN func(int) int, n, k int) []int {
	seen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := intN(j + 1)
		if _, dup := seen[t]; dup {
			t = j
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
