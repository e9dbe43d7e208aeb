package exemplar

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/distance"
)

// MetricFunc returns the distance from query to every item of candidates, in order.
//
// Distances must be non-negative and zero for identical items. The returned slice must
// have exactly candidates.Len() elements; a metric that violates this fails the call
// with ErrDataInvalid.
type MetricFunc[T any] func(candidates dataset.Dataset[T], query T) []float64

// Pairwise lifts a two-item distance into a MetricFunc.
func Pairwise[T any](fn func(a, b T) float64) MetricFunc[T] {
	return func(candidates dataset.Dataset[T], query T) []float64 {
		out := make([]float64, candidates.Len())
		for i := range out {
			out[i] = fn(candidates.At(i), query)
		}
		return out
	}
}

// Builtin returns the MetricFunc of a built-in vector metric.
func Builtin(m distance.Metric) (MetricFunc[[]float64], error) {
	fn, err := distance.Provider(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImproperlyConfigured, err)
	}
	return Pairwise(func(a, b []float64) float64 { return fn(a, b) }), nil
}

// NamedMetric resolves a short symbolic metric name such as "euclidean" or "rmsd".
func NamedMetric(name string) (MetricFunc[[]float64], error) {
	m, err := distance.ParseMetric(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImproperlyConfigured, err)
	}
	return Builtin(m)
}

// minChunk is the smallest slice of candidates worth a goroutine of its own.
const minChunk = 256

// evaluator invokes a metric and checks its output.
type evaluator[T any] struct {
	metric      MetricFunc[T]
	parallelism int
	metrics     MetricsCollector
}

// distances returns metric(candidates, query), split across goroutines when the
// evaluator is parallel and the candidate set is large enough.
func (e *evaluator[T]) distances(ctx context.Context, candidates dataset.Dataset[T], query T) ([]float64, error) {
	n := candidates.Len()
	if n == 0 {
		return nil, nil
	}

	chunks := min(e.parallelism, (n+minChunk-1)/minChunk)
	if chunks <= 1 {
		out, err := e.call(candidates, query)
		if err != nil {
			return nil, err
		}
		if len(out) != n {
			return nil, &ErrLengthMismatch{What: "metric output", Expected: n, Actual: len(out)}
		}
		e.metrics.RecordDistanceEvaluations(n)
		return out, nil
	}

	out := make([]float64, n)
	size := (n + chunks - 1) / chunks

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunks)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part, err := e.call(candidates.Slice(lo, hi), query)
			if err != nil {
				return err
			}
			if len(part) != hi-lo {
				return &ErrLengthMismatch{What: "metric output", Expected: hi - lo, Actual: len(part)}
			}
			copy(out[lo:hi], part)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.metrics.RecordDistanceEvaluations(n)
	return out, nil
}

// call invokes the metric and reports a panic inside it, such as a vector length
// mismatch in a gonum routine, as ErrDataInvalid.
func (e *evaluator[T]) call(candidates dataset.Dataset[T], query T) (out []float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, dataError("metric panicked: %v", p)
		}
	}()
	return e.metric(candidates, query), nil
}
