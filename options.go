package exemplar

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/exemplar/codec"
	"github.com/hupe1980/exemplar/collective"
)

const (
	// DefaultHybridMedoidUpdates is the number of refinement rounds Hybrid runs
	// after seeding.
	DefaultHybridMedoidUpdates = 5

	// DefaultKMedoidsUpdates is the number of rounds KMedoids runs from a random start.
	DefaultKMedoidsUpdates = 10
)

type options struct {
	nClusters        int
	hasNClusters     bool
	clusterRadius    float64
	hasClusterRadius bool

	initCenters   []int
	initCenterIDs []ItemID
	initItems     any
	nInitItems    int

	seed        uint64
	rng         *rand.Rand
	randomFirst bool

	medoidUpdates    int
	hasMedoidUpdates bool

	comm        collective.Collectives
	codec       codec.Codec
	parallelism int

	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a clustering call.
type Option func(*options)

// WithNClusters stops seeding once n centers exist.
func WithNClusters(n int) Option {
	return func(o *options) {
		o.nClusters = n
		o.hasNClusters = true
	}
}

// WithClusterRadius stops seeding once every item lies within r of its center.
func WithClusterRadius(r float64) Option {
	return func(o *options) {
		o.clusterRadius = r
		o.hasClusterRadius = true
	}
}

// WithInitCenters hot-starts K-Centers from the given global item indices.
// The centers keep their order, so label i is the i-th index.
func WithInitCenters(indices ...int) Option {
	return func(o *options) {
		o.initCenters = append([]int(nil), indices...)
	}
}

// WithInitCenterIDs hot-starts K-Centers from (rank, local index) identifiers.
func WithInitCenterIDs(ids ...ItemID) Option {
	return func(o *options) {
		o.initCenterIDs = append([]ItemID(nil), ids...)
	}
}

// WithInitCenterItems hot-starts K-Centers from items that need not belong to the
// data, such as cluster centers from an earlier run over other frames. The items
// must have the item type of the clustered data. They take the first labels and are
// reported with CenterIDs {-1, -1} and CenterIndices -1.
func WithInitCenterItems[T any](items ...T) Option {
	return func(o *options) {
		o.initItems = append([]T(nil), items...)
		o.nInitItems = len(items)
	}
}

// WithSeed seeds the PCG generator used for random choices. Every worker of a
// partitioned run must use the same seed.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.rng = nil
	}
}

// WithRand supplies the generator directly. It overrides WithSeed.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rng = r
	}
}

// WithRandomFirstCenter draws the first K-Centers center uniformly at random instead
// of using item 0. It has no effect when initial centers are given.
func WithRandomFirstCenter(enabled bool) Option {
	return func(o *options) {
		o.randomFirst = enabled
	}
}

// WithMedoidUpdates sets the number of K-Medoids refinement rounds.
func WithMedoidUpdates(n int) Option {
	return func(o *options) {
		o.medoidUpdates = n
		o.hasMedoidUpdates = true
	}
}

// WithCollectives runs the call as one worker of a partitioned group. The data passed
// to the call is this worker's row partition; ranks are ordered by global index.
//
// If nil is passed, the call runs single-process.
func WithCollectives(c collective.Collectives) Option {
	return func(o *options) {
		if c == nil {
			c = collective.Single()
		}
		o.comm = c
	}
}

// WithCodec configures how items are encoded when broadcast to other workers.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithParallelism splits each metric evaluation into up to n concurrent chunks.
// The metric must then be safe for concurrent use.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		comm:             collective.Single(),
		codec:            codec.Default,
		parallelism:      1,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(o.seed, o.seed))
	}
	return o
}

// validateStopping checks the K-Centers stopping criteria.
func (o *options) validateStopping() error {
	if !o.hasNClusters && !o.hasClusterRadius {
		return &ErrNoStoppingCriterion{}
	}
	if o.hasNClusters && o.nClusters <= 0 {
		return configError("n_clusters must be positive, got %d", o.nClusters)
	}
	if o.hasClusterRadius && (math.IsNaN(o.clusterRadius) || o.clusterRadius < 0) {
		return configError("cluster_radius must be a non-negative number, got %v", o.clusterRadius)
	}
	return nil
}

// medoidRounds resolves the refinement round count, falling back to def.
func (o *options) medoidRounds(def int) (int, error) {
	if !o.hasMedoidUpdates {
		return def, nil
	}
	if o.medoidUpdates <= 0 {
		return 0, configError("medoid updates must be positive, got %d", o.medoidUpdates)
	}
	return o.medoidUpdates, nil
}

func (o *options) validateCommon() error {
	if o.parallelism <= 0 {
		return configError("parallelism must be positive, got %d", o.parallelism)
	}
	sources := 0
	for _, n := range []int{len(o.initCenters), len(o.initCenterIDs), o.nInitItems} {
		if n > 0 {
			sources++
		}
	}
	if sources > 1 {
		return configError("init centers given more than one way")
	}
	return nil
}
