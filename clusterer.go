package exemplar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/exemplar/dataset"
)

// Algorithm selects the engine a Clusterer fits with.
type Algorithm int

const (
	// KCentersAlgorithm is farthest-point seeding only.
	KCentersAlgorithm Algorithm = iota
	// HybridAlgorithm is seeding followed by medoid refinement.
	HybridAlgorithm
	// KMedoidsAlgorithm is medoid refinement from a random start.
	KMedoidsAlgorithm
)

func (a Algorithm) String() string {
	switch a {
	case KCentersAlgorithm:
		return AlgorithmKCenters
	case HybridAlgorithm:
		return AlgorithmHybrid
	case KMedoidsAlgorithm:
		return AlgorithmKMedoids
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm resolves "kcenters", "khybrid" (or "hybrid") and "kmedoids".
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case AlgorithmKCenters:
		return KCentersAlgorithm, nil
	case AlgorithmHybrid, "hybrid":
		return HybridAlgorithm, nil
	case AlgorithmKMedoids:
		return KMedoidsAlgorithm, nil
	default:
		return 0, configError("unknown algorithm %q", name)
	}
}

// Clusterer bundles an algorithm, a metric and options, and keeps the last fit.
//
// Example:
//
//	metric, _ := exemplar.NamedMetric("euclidean")
//	c, _ := exemplar.NewClusterer(exemplar.HybridAlgorithm, metric, exemplar.WithNClusters(3))
//	if err := c.Fit(ctx, data); err != nil { ... }
//	labels := c.Result().Assignments
type Clusterer[T any] struct {
	algorithm Algorithm
	metric    MetricFunc[T]
	opts      []Option

	mu      sync.RWMutex
	result  *Result[T]
	runtime time.Duration
}

// NewClusterer validates the configuration eagerly and returns an unfitted clusterer.
func NewClusterer[T any](algorithm Algorithm, metric MetricFunc[T], opts ...Option) (*Clusterer[T], error) {
	if metric == nil {
		return nil, configError("metric is nil")
	}
	o := applyOptions(opts)
	if err := o.validateCommon(); err != nil {
		return nil, err
	}
	switch algorithm {
	case KCentersAlgorithm:
		if err := o.validateStopping(); err != nil {
			return nil, err
		}
	case HybridAlgorithm:
		if err := o.validateStopping(); err != nil {
			return nil, err
		}
		if _, err := o.medoidRounds(DefaultHybridMedoidUpdates); err != nil {
			return nil, err
		}
	case KMedoidsAlgorithm:
		if !o.hasNClusters {
			return nil, &ErrNoStoppingCriterion{}
		}
		if _, err := o.medoidRounds(DefaultKMedoidsUpdates); err != nil {
			return nil, err
		}
	default:
		return nil, configError("unknown algorithm %v", algorithm)
	}
	return &Clusterer[T]{
		algorithm: algorithm,
		metric:    metric,
		opts:      opts,
	}, nil
}

// Algorithm returns the configured algorithm.
func (c *Clusterer[T]) Algorithm() Algorithm { return c.algorithm }

// Fit clusters data and stores the result.
func (c *Clusterer[T]) Fit(ctx context.Context, data dataset.Dataset[T]) error {
	start := time.Now()

	var (
		res *Result[T]
		err error
	)
	switch c.algorithm {
	case KCentersAlgorithm:
		res, err = KCenters(ctx, data, c.metric, c.opts...)
	case HybridAlgorithm:
		res, err = Hybrid(ctx, data, c.metric, c.opts...)
	case KMedoidsAlgorithm:
		res, err = KMedoids(ctx, data, c.metric, c.opts...)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.result = res
	c.runtime = time.Since(start)
	c.mu.Unlock()
	return nil
}

// Predict assigns data to the fitted centers.
func (c *Clusterer[T]) Predict(ctx context.Context, data dataset.Dataset[T]) (*Result[T], error) {
	res := c.Result()
	if res == nil {
		return nil, configError("clusterer is not fitted")
	}
	return Predict(ctx, res.Centers, data, c.metric, c.opts...)
}

// Result returns the last fit, or nil before the first successful Fit.
func (c *Clusterer[T]) Result() *Result[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Runtime returns the wall time of the last successful Fit.
func (c *Clusterer[T]) Runtime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runtime
}
