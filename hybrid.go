package exemplar

import (
	"context"

	"github.com/hupe1980/exemplar/dataset"
)

// Hybrid seeds with KCenters and then pulls each center toward the interior of its
// cluster with WithMedoidUpdates K-Medoids rounds (DefaultHybridMedoidUpdates if
// unset). It takes the same stopping options as KCenters.
func Hybrid[T any](ctx context.Context, data dataset.Dataset[T], metric MetricFunc[T], opts ...Option) (*Result[T], error) {
	o := applyOptions(opts)
	return execute(ctx, AlgorithmHybrid, &o, func() (*Result[T], error) {
		if err := o.validateCommon(); err != nil {
			return nil, err
		}
		if err := o.validateStopping(); err != nil {
			return nil, err
		}
		rounds, err := o.medoidRounds(DefaultHybridMedoidUpdates)
		if err != nil {
			return nil, err
		}

		r, err := newRun(ctx, AlgorithmHybrid, data, metric, &o)
		if err != nil {
			return nil, err
		}
		if err := r.kcenters(ctx, &o); err != nil {
			return nil, err
		}
		if err := r.kmedoids(ctx, rounds); err != nil {
			return nil, err
		}
		return r.result(), nil
	})
}
