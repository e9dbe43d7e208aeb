package exemplar

import (
	"context"
	"time"

	"github.com/hupe1980/exemplar/collective"
	"github.com/hupe1980/exemplar/dataset"
)

// Reasons reported when seeding stops.
const (
	stopRadius    = "cluster_radius"
	stopNClusters = "n_clusters"
	stopExhausted = "exhausted"
)

// KCenters clusters data by farthest-point seeding.
//
// Starting from the initial centers (WithInitCenters, WithInitCenterIDs,
// WithInitCenterItems), item 0, or a
// uniformly drawn item (WithRandomFirstCenter), it repeatedly admits the item farthest
// from its nearest center until every item lies within the cluster radius, the
// requested number of clusters exists, or every item coincides with a center.
// At least one of WithNClusters and WithClusterRadius is required.
//
// With WithCollectives, data is this worker's partition and every worker of the group
// must make the same call.
func KCenters[T any](ctx context.Context, data dataset.Dataset[T], metric MetricFunc[T], opts ...Option) (*Result[T], error) {
	o := applyOptions(opts)
	return execute(ctx, AlgorithmKCenters, &o, func() (*Result[T], error) {
		if err := o.validateCommon(); err != nil {
			return nil, err
		}
		if err := o.validateStopping(); err != nil {
			return nil, err
		}
		r, err := newRun(ctx, AlgorithmKCenters, data, metric, &o)
		if err != nil {
			return nil, err
		}
		if err := r.kcenters(ctx, &o); err != nil {
			return nil, err
		}
		return r.result(), nil
	})
}

// kcenters seeds r.tr until a stopping condition holds.
func (r *run[T]) kcenters(ctx context.Context, o *options) error {
	start := time.Now()

	seeds, err := r.resolve(o.initCenters, o.initCenterIDs)
	if err != nil {
		return err
	}
	var items []T
	if o.nInitItems > 0 {
		var ok bool
		if items, ok = o.initItems.([]T); !ok {
			return configError("initial center items are %T, want %T", o.initItems, items)
		}
	}
	if n := len(seeds) + len(items); o.hasNClusters && n > o.nClusters {
		return configError("%d initial centers exceed n_clusters %d", n, o.nClusters)
	}
	for _, item := range items {
		if err := r.admitItem(ctx, item); err != nil {
			return err
		}
	}
	if len(items) > 0 {
		r.log.DebugContext(ctx, "initial center items admitted", "centers", len(items))
	}
	if len(seeds) == 0 && len(items) == 0 {
		first := 0
		if o.randomFirst {
			first = r.rng.IntN(r.total)
		}
		rank, local, _ := collective.Locate(r.lengths, first)
		seeds = []ItemID{{Rank: rank, Index: local}}
	}

	for _, id := range seeds {
		if err := r.admit(ctx, id); err != nil {
			return err
		}
		r.log.DebugContext(ctx, "initial center admitted",
			"label", len(r.centers)-1,
			"center_rank", id.Rank,
			"center_index", id.Index,
		)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		far, err := r.farthest(ctx)
		if err != nil {
			return err
		}

		reason := ""
		switch {
		case o.hasClusterRadius && far.Value <= o.clusterRadius:
			reason = stopRadius
		case o.hasNClusters && len(r.centers) >= o.nClusters:
			reason = stopNClusters
		case far.Value <= 0 || len(r.centers)-len(items) >= r.total:
			reason = stopExhausted
		}
		if reason != "" {
			r.log.LogSeedingDone(ctx, len(r.centers), far.Value, reason, time.Since(start))
			return nil
		}

		id := ItemID{Rank: far.Rank, Index: far.Index}
		if err := r.admit(ctx, id); err != nil {
			return err
		}
		r.log.LogCenterAdmitted(ctx, len(r.centers)-1, id, far.Value)
		r.progress.Do(func() {
			r.log.InfoContext(ctx, "seeding in progress",
				"centers", len(r.centers),
				"max_distance", far.Value,
			)
		})
	}
}
