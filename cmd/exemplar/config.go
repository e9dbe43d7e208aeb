package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/codec"
	"github.com/hupe1980/exemplar/distance"
	"github.com/hupe1980/exemplar/resultstore"
)

type config struct {
	inputs []string

	algorithm     exemplar.Algorithm
	metric        string
	nClusters     int
	clusterRadius float64
	medoidUpdates int
	seed          uint64
	randomFirst   bool
	subsample     int
	noReassign    bool
	parallelism   int

	workers     int
	rank        int
	size        int
	coordinator string
	timeout     time.Duration

	output      string
	codec       codec.Codec
	compression resultstore.Compression
	writers     int
	writeLimit  int64

	logLevel  slog.Level
	logFormat string

	set map[string]bool
}

const usageHeader = `Usage: exemplar [flags] segment.npy [segment.npy ...]

Clusters the rows of one or more .npy matrices (one file per segment, for example
one trajectory per file) and writes assignments, distances and centers per segment.

Flags:
`

func parseFlags(args []string, stderr io.Writer) (*config, []string, error) {
	fs := flag.NewFlagSet("exemplar", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageHeader)
		fs.PrintDefaults()
	}

	var (
		algorithm   = fs.String("algorithm", "khybrid", "clustering algorithm: kcenters, khybrid or kmedoids")
		codecName   = fs.String("codec", "json", "result codec: "+strings.Join(codec.Names(), ", "))
		compression = fs.String("compression", "zstd", "result compression: none, zstd or lz4")
		logLevel    = fs.String("log-level", "info", "log level: debug, info, warn or error")
		cfg         = &config{set: map[string]bool{}}
	)
	fs.StringVar(&cfg.metric, "metric", "euclidean", "distance metric: euclidean, sqeuclidean, manhattan, rmsd or cosine")
	fs.IntVar(&cfg.nClusters, "n-clusters", 0, "number of clusters to produce")
	fs.Float64Var(&cfg.clusterRadius, "cluster-radius", 0, "stop seeding once every item is within this distance of a center")
	fs.IntVar(&cfg.medoidUpdates, "medoid-updates", 0, "medoid refinement rounds (default 5 for khybrid, 10 for kmedoids)")
	fs.Uint64Var(&cfg.seed, "seed", 0, "random seed; distributed workers must agree on it")
	fs.BoolVar(&cfg.randomFirst, "random-first-center", false, "draw the first center at random instead of using the first item")
	fs.IntVar(&cfg.subsample, "subsample", 1, "cluster every Nth item of each segment")
	fs.BoolVar(&cfg.noReassign, "no-reassign", false, "do not assign the skipped items after clustering a subsample")
	fs.IntVar(&cfg.parallelism, "parallelism", 1, "goroutines per worker for distance evaluation")
	fs.IntVar(&cfg.workers, "workers", 1, "number of in-process workers")
	fs.IntVar(&cfg.rank, "rank", 0, "rank of this process in a multi-process group")
	fs.IntVar(&cfg.size, "size", 1, "number of processes in a multi-process group")
	fs.StringVar(&cfg.coordinator, "coordinator", "", "host:port of the rank 0 coordinator")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "abort the run after this duration (0 disables)")
	fs.StringVar(&cfg.output, "output", "file://exemplar-results", "result location: file://dir, mem://, s3://bucket/prefix or minio://host/bucket/prefix")
	fs.IntVar(&cfg.writers, "write-concurrency", 4, "segment blobs written at once")
	fs.Int64Var(&cfg.writeLimit, "write-limit", 0, "write throughput limit in bytes per second (0 disables)")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text or json")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })
	cfg.inputs = fs.Args()

	var err error
	if cfg.algorithm, err = exemplar.ParseAlgorithm(*algorithm); err != nil {
		return nil, nil, err
	}
	if _, err := distance.ParseMetric(cfg.metric); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", exemplar.ErrImproperlyConfigured, err)
	}
	c, ok := codec.ByName(*codecName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown codec %q", exemplar.ErrImproperlyConfigured, *codecName)
	}
	cfg.codec = c
	if cfg.compression, err = resultstore.ParseCompression(*compression); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", exemplar.ErrImproperlyConfigured, err)
	}
	if err := cfg.logLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, nil, fmt.Errorf("%w: log level: %w", exemplar.ErrImproperlyConfigured, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.warnings(), nil
}

func (c *config) validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{exemplar.ErrImproperlyConfigured}, args...)...))
	}

	if len(c.inputs) == 0 {
		bad("no input files")
	}
	if !c.set["n-clusters"] && !c.set["cluster-radius"] {
		bad("at least one of -n-clusters and -cluster-radius is required")
	}
	if c.subsample < 1 {
		bad("-subsample must be at least 1, got %d", c.subsample)
	}
	if c.workers < 1 {
		bad("-workers must be at least 1, got %d", c.workers)
	}
	if c.writers < 1 {
		bad("-write-concurrency must be at least 1, got %d", c.writers)
	}
	if c.writeLimit < 0 {
		bad("-write-limit must not be negative, got %d", c.writeLimit)
	}
	if c.size < 1 {
		bad("-size must be at least 1, got %d", c.size)
	}
	if c.size > 1 {
		if c.workers > 1 {
			bad("-workers cannot be combined with -size")
		}
		if c.coordinator == "" {
			bad("-size %d requires -coordinator", c.size)
		}
	}
	if c.rank < 0 || c.rank >= c.size {
		bad("-rank %d outside group of %d", c.rank, c.size)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		bad("unknown log format %q", c.logFormat)
	}
	return errors.Join(errs...)
}

// warnings lists flags that are accepted but have no effect.
func (c *config) warnings() []string {
	var out []string
	if c.noReassign && c.subsample == 1 {
		out = append(out, "-no-reassign has no effect without -subsample")
	}
	if c.set["medoid-updates"] && c.algorithm == exemplar.KCentersAlgorithm {
		out = append(out, "-medoid-updates has no effect with -algorithm kcenters")
	}
	if c.randomFirst && c.algorithm == exemplar.KMedoidsAlgorithm {
		out = append(out, "-random-first-center has no effect with -algorithm kmedoids")
	}
	if c.set["coordinator"] && c.size == 1 {
		out = append(out, "-coordinator has no effect without -size")
	}
	return out
}

func (c *config) reassign() bool {
	return c.subsample > 1 && !c.noReassign
}

// options translates the flags into library options. Only flags the user set are
// passed, so the library defaults and validation apply to the rest.
func (c *config) options(logger *exemplar.Logger, mc exemplar.MetricsCollector) []exemplar.Option {
	opts := []exemplar.Option{
		exemplar.WithSeed(c.seed),
		exemplar.WithRandomFirstCenter(c.randomFirst),
		exemplar.WithParallelism(c.parallelism),
		exemplar.WithCodec(c.codec),
		exemplar.WithLogger(logger),
		exemplar.WithMetricsCollector(mc),
	}
	if c.set["n-clusters"] {
		opts = append(opts, exemplar.WithNClusters(c.nClusters))
	}
	if c.set["cluster-radius"] {
		opts = append(opts, exemplar.WithClusterRadius(c.clusterRadius))
	}
	if c.set["medoid-updates"] && c.algorithm != exemplar.KCentersAlgorithm {
		opts = append(opts, exemplar.WithMedoidUpdates(c.medoidUpdates))
	}
	return opts
}
