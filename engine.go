package exemplar

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hupe1980/exemplar/codec"
	"github.com/hupe1980/exemplar/collective"
	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/internal/tracker"
)

// Algorithm names reported in results, logs and metrics.
const (
	AlgorithmKCenters = "kcenters"
	AlgorithmKMedoids = "kmedoids"
	AlgorithmHybrid   = "khybrid"
	AlgorithmRefine   = "refine"
	AlgorithmPredict  = "predict"
)

const progressInterval = 5 * time.Second

// run is the state of one clustering call on one worker. The same code path serves
// single-process calls, where comm is collective.Single.
//
// Every worker holds the replicated center list and its own slice of the tracker.
// All workers execute the same sequence of collectives and random draws.
type run[T any] struct {
	algorithm string
	runID     string

	data    dataset.Dataset[T]
	eval    *evaluator[T]
	comm    collective.Collectives
	codec   codec.Codec
	rng     *rand.Rand
	log     *Logger
	metrics MetricsCollector

	lengths []int
	offsets []int
	total   int

	tr        *tracker.Tracker
	centers   []T
	centerIDs []ItemID

	progress rate.Sometimes
}

// envelope carries an item and its local index to other workers.
type envelope[T any] struct {
	Index int `json:"index"`
	Item  T   `json:"item"`
}

func newRun[T any](ctx context.Context, algorithm string, data dataset.Dataset[T], metric MetricFunc[T], o *options) (*run[T], error) {
	if data == nil {
		return nil, configError("data is nil")
	}
	if metric == nil {
		return nil, configError("metric is nil")
	}

	r := &run[T]{
		algorithm: algorithm,
		data:      data,
		eval:      &evaluator[T]{metric: metric, parallelism: o.parallelism, metrics: o.metricsCollector},
		comm:      o.comm,
		codec:     o.codec,
		rng:       o.rng,
		metrics:   o.metricsCollector,
		progress:  rate.Sometimes{Interval: progressInterval},
	}

	lengths, err := r.comm.AllGatherInt(ctx, data.Len())
	if err != nil {
		return nil, err
	}
	r.lengths = lengths
	r.offsets, r.total = collective.Offsets(lengths)
	if r.total == 0 {
		return nil, dataError("no items to cluster")
	}

	r.runID, err = r.agreeRunID(ctx)
	if err != nil {
		return nil, err
	}
	r.log = o.logger.WithRun(r.runID, algorithm, r.comm.Rank())
	r.tr = tracker.New(data.Len())
	return r, nil
}

// agreeRunID makes rank 0's run id the id of every worker.
func (r *run[T]) agreeRunID(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if r.comm.Size() == 1 {
		return id, nil
	}
	b, err := r.comm.Broadcast(ctx, 0, []byte(id))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *run[T]) globalIndex(id ItemID) int { return r.offsets[id.Rank] + id.Index }

// resolve converts flat global indices or (rank, index) ids into checked ids.
func (r *run[T]) resolve(indices []int, ids []ItemID) ([]ItemID, error) {
	out := make([]ItemID, 0, len(indices)+len(ids))
	for _, g := range indices {
		rank, local, ok := collective.Locate(r.lengths, g)
		if !ok {
			return nil, &ErrIndexOutOfRange{Index: g, Len: r.total}
		}
		out = append(out, ItemID{Rank: rank, Index: local})
	}
	for _, id := range ids {
		if id.Rank < 0 || id.Rank >= len(r.lengths) {
			return nil, dataError("center %s: rank outside group of %d", id, len(r.lengths))
		}
		if id.Index < 0 || id.Index >= r.lengths[id.Rank] {
			return nil, fmt.Errorf("center %s: %w", id, &ErrIndexOutOfRange{Index: id.Index, Len: r.lengths[id.Rank]})
		}
		out = append(out, id)
	}
	return out, nil
}

// fetch returns the item behind id on every worker.
func (r *run[T]) fetch(ctx context.Context, id ItemID) (T, error) {
	var item T
	if r.comm.Size() == 1 {
		return r.data.At(id.Index), nil
	}

	var payload []byte
	if r.comm.Rank() == id.Rank {
		b, err := r.codec.Marshal(r.data.At(id.Index))
		if err != nil {
			return item, fmt.Errorf("encode item %s: %w", id, err)
		}
		payload = b
	}
	b, err := r.comm.Broadcast(ctx, id.Rank, payload)
	if err != nil {
		return item, err
	}
	if r.comm.Rank() == id.Rank {
		return r.data.At(id.Index), nil
	}
	if err := r.codec.Unmarshal(b, &item); err != nil {
		return item, fmt.Errorf("decode item %s: %w", id, err)
	}
	return item, nil
}

// fetchLocal is fetch for an item whose local index only the owner knows.
func (r *run[T]) fetchLocal(ctx context.Context, owner, index int) (ItemID, T, error) {
	if r.comm.Size() == 1 {
		return ItemID{Rank: 0, Index: index}, r.data.At(index), nil
	}

	var (
		env     envelope[T]
		payload []byte
	)
	if r.comm.Rank() == owner {
		b, err := r.codec.Marshal(envelope[T]{Index: index, Item: r.data.At(index)})
		if err != nil {
			return ItemID{}, env.Item, fmt.Errorf("encode item %d:%d: %w", owner, index, err)
		}
		payload = b
	}
	b, err := r.comm.Broadcast(ctx, owner, payload)
	if err != nil {
		return ItemID{}, env.Item, err
	}
	if r.comm.Rank() == owner {
		return ItemID{Rank: owner, Index: index}, r.data.At(index), nil
	}
	if err := r.codec.Unmarshal(b, &env); err != nil {
		return ItemID{}, env.Item, fmt.Errorf("decode item from rank %d: %w", owner, err)
	}
	return ItemID{Rank: owner, Index: env.Index}, env.Item, nil
}

// admit fetches the item behind id and makes it the next center.
func (r *run[T]) admit(ctx context.Context, id ItemID) error {
	item, err := r.fetch(ctx, id)
	if err != nil {
		return err
	}
	dists, err := r.eval.distances(ctx, r.data, item)
	if err != nil {
		return err
	}
	r.tr.Admit(dists)
	r.centers = append(r.centers, item)
	r.centerIDs = append(r.centerIDs, id)
	r.metrics.RecordCenterAdmitted()
	return nil
}

// admitItem makes an item from outside the data the next center. It carries the
// external ItemID {-1, -1}.
func (r *run[T]) admitItem(ctx context.Context, item T) error {
	if err := checkCenterDims([]T{item}, r.data); err != nil {
		return err
	}
	dists, err := r.eval.distances(ctx, r.data, item)
	if err != nil {
		return err
	}
	r.tr.Admit(dists)
	r.centers = append(r.centers, item)
	r.centerIDs = append(r.centerIDs, externalID)
	r.metrics.RecordCenterAdmitted()
	return nil
}

// farthest locates the item with the largest distance to its center across all
// workers. Ties resolve to the lowest global index.
func (r *run[T]) farthest(ctx context.Context) (collective.MaxLoc, error) {
	value, index := r.tr.Farthest()
	return r.comm.AllReduceMaxLoc(ctx, value, index)
}

// maxDistance returns the largest item-to-center distance across all workers.
func (r *run[T]) maxDistance(ctx context.Context) (float64, error) {
	ml, err := r.farthest(ctx)
	if err != nil {
		return math.NaN(), err
	}
	return ml.Value, nil
}

func (r *run[T]) result() *Result[T] {
	indices := make([]int, len(r.centerIDs))
	for i, id := range r.centerIDs {
		indices[i] = -1
		if id != externalID {
			indices[i] = r.globalIndex(id)
		}
	}
	return &Result[T]{
		RunID:         r.runID,
		Algorithm:     r.algorithm,
		CenterIDs:     r.centerIDs,
		CenterIndices: indices,
		Centers:       r.centers,
		Assignments:   r.tr.Assignments,
		Distances:     r.tr.Distances,
		Lengths:       r.lengths,
		Rank:          r.comm.Rank(),
	}
}

// execute runs fn as a top-level call: failures abort the group so no peer stays
// blocked, and the outcome is reported to logs and metrics.
func execute[T any](ctx context.Context, algorithm string, o *options, fn func() (*Result[T], error)) (*Result[T], error) {
	start := time.Now()
	res, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		o.comm.Abort(err)
		o.logger.LogRun(ctx, 0, 0, elapsed, fmt.Errorf("%s: %w", algorithm, err))
	} else {
		o.logger.LogRun(ctx, len(res.Assignments), len(res.Centers), elapsed, nil)
	}
	o.metricsCollector.RecordRun(algorithm, elapsed, err)
	return res, err
}
