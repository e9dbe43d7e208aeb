package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/collective"
	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/internal/npy"
	"github.com/hupe1980/exemplar/resultstore"
)

// segment is one input file.
type segment struct {
	name string
	full *dataset.Vectors
	sub  *dataset.Vectors
}

func loadSegments(paths []string, subsample int) ([]*segment, int, error) {
	segs := make([]*segment, len(paths))
	dim := 0
	for i, p := range paths {
		v, err := npy.Load(p)
		if err != nil {
			return nil, 0, err
		}
		if i == 0 {
			dim = v.Dim()
		} else if v.Dim() != dim {
			return nil, 0, fmt.Errorf("%w: %s has %d columns, %s has %d",
				exemplar.ErrDataInvalid, p, v.Dim(), paths[0], dim)
		}
		segs[i] = &segment{name: p, full: v, sub: v.Stride(subsample)}
	}
	return segs, dim, nil
}

// shard is the part of the input one worker owns.
type shard struct {
	segments []*segment
	dim      int
}

func (s *shard) rows(sub bool) *dataset.Vectors {
	var data []float64
	for _, seg := range s.segments {
		v := seg.full
		if sub {
			v = seg.sub
		}
		data = append(data, v.Raw()...)
	}
	out, _ := dataset.NewVectors(data, s.dim)
	return out
}

func (s *shard) layout(sub bool) []resultstore.Segment {
	out := make([]resultstore.Segment, len(s.segments))
	for i, seg := range s.segments {
		n := seg.full.Len()
		if sub {
			n = seg.sub.Len()
		}
		out[i] = resultstore.Segment{Name: seg.name, Length: n}
	}
	return out
}

// fullIndex maps a row of the subsampled shard to its row in the full shard.
func (s *shard) fullIndex(subIndex, stride int) int {
	base := 0
	for _, seg := range s.segments {
		if subIndex < seg.sub.Len() {
			return base + subIndex*stride
		}
		subIndex -= seg.sub.Len()
		base += seg.full.Len()
	}
	return -1
}

// splitShards distributes whole segments over n workers, contiguously.
func splitShards(segs []*segment, dim, n int) ([]*shard, error) {
	parts, err := dataset.Shard[*segment](dataset.Items[*segment](segs), n)
	if err != nil {
		return nil, err
	}
	out := make([]*shard, n)
	for i, p := range parts {
		out[i] = &shard{segments: dataset.Collect(p), dim: dim}
	}
	return out, nil
}

type job struct {
	cfg     *config
	metric  exemplar.MetricFunc[[]float64]
	store   *resultstore.Store
	logger  *exemplar.Logger
	metrics *exemplar.BasicMetricsCollector
}

// work clusters one shard as rank c.Rank() and saves its part of the result.
func (j *job) work(ctx context.Context, c collective.Collectives, sh *shard) (*resultstore.Manifest, error) {
	opts := append(j.cfg.options(j.logger, j.metrics), exemplar.WithCollectives(c))
	cl, err := exemplar.NewClusterer(j.cfg.algorithm, j.metric, opts...)
	if err != nil {
		return nil, err
	}

	sub := j.cfg.subsample > 1
	if err := cl.Fit(ctx, sh.rows(sub)); err != nil {
		return nil, err
	}
	res := cl.Result()
	j.logger.InfoContext(ctx, "clustering finished",
		"run_id", res.RunID,
		"rank", res.Rank,
		"clusters", res.NClusters(),
		"items", len(res.Assignments),
		"runtime", cl.Runtime(),
	)

	out, layout := res, sh.layout(sub)
	if j.cfg.reassign() {
		if out, err = j.reassign(ctx, c, cl, sh, res); err != nil {
			c.Abort(err)
			return nil, err
		}
		layout = sh.layout(false)
	}
	return resultstore.Save(ctx, j.store, out, layout)
}

// reassign predicts every item of the full shard against the fitted centers and
// translates the center positions from subsampled to full coordinates.
func (j *job) reassign(ctx context.Context, c collective.Collectives, cl *exemplar.Clusterer[[]float64], sh *shard, res *exemplar.Result[[]float64]) (*exemplar.Result[[]float64], error) {
	full := sh.rows(false)
	pred, err := cl.Predict(ctx, full)
	if err != nil {
		return nil, err
	}

	lengths, err := c.AllGatherInt(ctx, full.Len())
	if err != nil {
		return nil, err
	}
	offsets, _ := collective.Offsets(lengths)

	ids := make([]exemplar.ItemID, len(res.CenterIDs))
	indices := make([]int, len(res.CenterIDs))
	for label, id := range res.CenterIDs {
		if id.Rank < 0 {
			ids[label], indices[label] = id, -1
			continue
		}
		local := -1
		if id.Rank == c.Rank() {
			local = sh.fullIndex(id.Index, j.cfg.subsample)
		}
		owned, err := c.AllGatherInt(ctx, local)
		if err != nil {
			return nil, err
		}
		ids[label] = exemplar.ItemID{Rank: id.Rank, Index: owned[id.Rank]}
		indices[label] = offsets[id.Rank] + owned[id.Rank]
	}

	j.logger.InfoContext(ctx, "reassigned full data",
		"run_id", res.RunID,
		"rank", c.Rank(),
		"items", full.Len(),
	)
	return &exemplar.Result[[]float64]{
		RunID:         res.RunID,
		Algorithm:     res.Algorithm,
		CenterIDs:     ids,
		CenterIndices: indices,
		Centers:       res.Centers,
		Assignments:   pred.Assignments,
		Distances:     pred.Distances,
		Lengths:       lengths,
		Rank:          c.Rank(),
	}, nil
}

// runLocal runs all workers in this process and returns the manifests in rank order.
func (j *job) runLocal(ctx context.Context, segs []*segment, dim int) ([]*resultstore.Manifest, error) {
	if j.cfg.workers == 1 {
		m, err := j.work(ctx, collective.Single(), &shard{segments: segs, dim: dim})
		if err != nil {
			return nil, err
		}
		return []*resultstore.Manifest{m}, nil
	}

	shards, err := splitShards(segs, dim, j.cfg.workers)
	if err != nil {
		return nil, err
	}
	g, err := collective.NewGroup(j.cfg.workers)
	if err != nil {
		return nil, err
	}
	manifests := make([]*resultstore.Manifest, j.cfg.workers)
	err = g.Run(ctx, func(ctx context.Context, c collective.Collectives) error {
		m, err := j.work(ctx, c, shards[c.Rank()])
		manifests[c.Rank()] = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return manifests, nil
}

// drainTimeout bounds how long the coordinator waits for peers to disconnect.
const drainTimeout = 10 * time.Second

// runRemote runs this process as one rank of a multi-process group.
func (j *job) runRemote(ctx context.Context, segs []*segment, dim int) ([]*resultstore.Manifest, error) {
	sh := &shard{segments: segs, dim: dim}

	if j.cfg.rank == 0 {
		ln, err := net.Listen("tcp", j.cfg.coordinator)
		if err != nil {
			return nil, err
		}
		srv, err := collective.Serve(ln, j.cfg.size)
		if err != nil {
			_ = ln.Close()
			return nil, err
		}
		defer srv.Close()
		j.logger.InfoContext(ctx, "coordinator listening", "addr", srv.Addr().String(), "size", j.cfg.size)

		c, err := srv.Member(0)
		if err != nil {
			return nil, err
		}
		m, err := j.work(ctx, c, sh)
		if err != nil {
			return nil, err
		}
		drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		defer cancel()
		if err := srv.Drain(drainCtx, j.cfg.size-1); err != nil {
			j.logger.WarnContext(ctx, "peers did not disconnect", "error", err)
		}
		return []*resultstore.Manifest{m}, nil
	}

	c, err := collective.Dial(ctx, j.cfg.coordinator, j.cfg.rank, j.cfg.size)
	if err != nil {
		return nil, err
	}
	defer collective.Close(c)

	m, err := j.work(ctx, c, sh)
	if err != nil {
		return nil, err
	}
	return []*resultstore.Manifest{m}, nil
}
