package exemplar

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/internal/tracker"
)

// AssignToNearest assigns every item of data to its nearest center. Ties resolve to
// the lowest label.
func AssignToNearest[T any](ctx context.Context, centers []T, data dataset.Dataset[T], metric MetricFunc[T], opts ...Option) ([]int, []float64, error) {
	o := applyOptions(opts)
	if err := o.validateCommon(); err != nil {
		return nil, nil, err
	}
	return assignToNearest(ctx, centers, data, metric, &o)
}

func assignToNearest[T any](ctx context.Context, centers []T, data dataset.Dataset[T], metric MetricFunc[T], o *options) ([]int, []float64, error) {
	if len(centers) == 0 {
		return nil, nil, configError("no centers")
	}
	if data == nil {
		return nil, nil, configError("data is nil")
	}
	if metric == nil {
		return nil, nil, configError("metric is nil")
	}
	if err := checkCenterDims(centers, data); err != nil {
		return nil, nil, err
	}

	eval := &evaluator[T]{metric: metric, parallelism: o.parallelism, metrics: o.metricsCollector}
	tr := tracker.New(data.Len())
	for _, c := range centers {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		dists, err := eval.distances(ctx, data, c)
		if err != nil {
			return nil, nil, err
		}
		tr.Admit(dists)
	}
	return tr.Assignments, tr.Distances, nil
}

// checkCenterDims rejects vector centers whose length differs from the rows of data.
// Other item types are left to the metric.
func checkCenterDims[T any](centers []T, data dataset.Dataset[T]) error {
	vecs, ok := any(centers).([][]float64)
	if !ok || data.Len() == 0 {
		return nil
	}
	row, _ := any(data.At(0)).([]float64)
	for i, c := range vecs {
		if len(c) != len(row) {
			return &ErrLengthMismatch{What: fmt.Sprintf("center %d dimension", i), Expected: len(row), Actual: len(c)}
		}
	}
	return nil
}

// Predict assigns the items of data to fixed centers without re-clustering.
//
// CenterIndices of the result holds, per label, the index into data of the item
// closest to that center, or -1 if no item was assigned to it. Prediction performs no
// collectives; partitioned workers each predict their own rows.
func Predict[T any](ctx context.Context, centers []T, data dataset.Dataset[T], metric MetricFunc[T], opts ...Option) (*Result[T], error) {
	o := applyOptions(opts)
	return execute(ctx, AlgorithmPredict, &o, func() (*Result[T], error) {
		if err := o.validateCommon(); err != nil {
			return nil, err
		}
		assig, dist, err := assignToNearest(ctx, centers, data, metric, &o)
		if err != nil {
			o.logger.LogPredict(ctx, 0, len(centers), err)
			return nil, err
		}
		indices, err := FindClusterCenters(assig, dist, len(centers))
		if err != nil {
			return nil, err
		}
		o.logger.LogPredict(ctx, len(assig), len(centers), nil)
		return &Result[T]{
			RunID:         uuid.NewString(),
			Algorithm:     AlgorithmPredict,
			CenterIndices: indices,
			Centers:       slices.Clone(centers),
			Assignments:   assig,
			Distances:     dist,
			Lengths:       []int{len(assig)},
			Rank:          0,
		}, nil
	})
}
