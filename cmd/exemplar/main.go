// Command exemplar clusters segmented matrices with k-centers, k-hybrid or
// k-medoids and stores the per-segment assignments in a blob store.
//
// Single process, two in-process workers:
//
//	exemplar -algorithm khybrid -metric rmsd -n-clusters 50 -workers 2 \
//	    -output file://results traj-0.npy traj-1.npy
//
// One process per shard, rank 0 coordinates:
//
//	exemplar -rank 0 -size 2 -coordinator :7070 -n-clusters 50 shard-0.npy
//	exemplar -rank 1 -size 2 -coordinator host0:7070 -n-clusters 50 shard-1.npy
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/resultstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, exemplar.ErrImproperlyConfigured):
		fmt.Fprintln(os.Stderr, "exemplar:", err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "exemplar:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, warnings, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, stderr)
	for _, w := range warnings {
		logger.WarnContext(ctx, w)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	metric, err := exemplar.NamedMetric(cfg.metric)
	if err != nil {
		return err
	}
	blobs, err := openStore(ctx, cfg.output)
	if err != nil {
		return err
	}
	segs, dim, err := loadSegments(cfg.inputs, cfg.subsample)
	if err != nil {
		return err
	}

	j := &job{
		cfg:     cfg,
		metric:  metric,
		logger:  logger,
		metrics: &exemplar.BasicMetricsCollector{},
		store: resultstore.New(blobs,
			resultstore.WithCodec(cfg.codec),
			resultstore.WithCompression(cfg.compression),
			resultstore.WithConcurrency(cfg.writers),
			resultstore.WithWriteRateLimit(cfg.writeLimit),
			resultstore.WithLogger(logger),
		),
	}

	var manifests []*resultstore.Manifest
	if cfg.size > 1 {
		manifests, err = j.runRemote(ctx, segs, dim)
	} else {
		manifests, err = j.runLocal(ctx, segs, dim)
	}
	if err != nil {
		return err
	}

	stats := j.metrics.GetStats()
	writes := j.store.WriteStats()
	logger.InfoContext(ctx, "done",
		"distance_evaluations", stats.DistanceEvaluations,
		"centers_admitted", stats.CentersAdmitted,
		"medoid_swaps", stats.MedoidSwaps,
		"bytes_written", writes.BytesWritten,
		"write_waits", writes.WriteWaits,
	)
	return report(stdout, cfg, manifests)
}

func newLogger(cfg *config, w io.Writer) *exemplar.Logger {
	opts := &slog.HandlerOptions{Level: cfg.logLevel}
	if cfg.logFormat == "json" {
		return exemplar.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return exemplar.NewLogger(slog.NewTextHandler(w, opts))
}

func report(w io.Writer, cfg *config, manifests []*resultstore.Manifest) error {
	for _, m := range manifests {
		if _, err := fmt.Fprintf(w, "run %s rank %d/%d: %s, %d clusters, %d segments -> %s\n",
			m.RunID, m.Rank, m.Size, m.Algorithm, len(m.CenterIndices), len(m.Segments), cfg.output); err != nil {
			return err
		}
		if s := m.Summary; s != nil {
			if _, err := fmt.Fprintf(w, "  distance mean %.6g std %.6g max %.6g\n", s.Mean, s.StdDev, s.Max); err != nil {
				return err
			}
		}
	}
	return nil
}
