package exemplar_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/codec"
	"github.com/hupe1980/exemplar/collective"
	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/testutil"
)

type clusterFunc func(ctx context.Context, data dataset.Dataset[[]float64], metric exemplar.MetricFunc[[]float64], opts ...exemplar.Option) (*exemplar.Result[[]float64], error)

// runSharded clusters data split into n shards on an in-process group and merges the
// per-worker results.
func runSharded(t *testing.T, fn clusterFunc, data dataset.Dataset[[]float64], n int, opts ...exemplar.Option) (*exemplar.Result[[]float64], error) {
	t.Helper()

	shards, err := dataset.Shard(data, n)
	require.NoError(t, err)
	g, err := collective.NewGroup(n)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	metric := euclidean(t)
	parts := make([]*exemplar.Result[[]float64], n)
	err = g.Run(ctx, func(ctx context.Context, c collective.Collectives) error {
		res, err := fn(ctx, shards[c.Rank()], metric, slices.Concat(opts, []exemplar.Option{exemplar.WithCollectives(c)})...)
		if err != nil {
			return err
		}
		parts[c.Rank()] = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	for rank, p := range parts {
		assert.Equal(t, rank, p.Rank)
		assert.Equal(t, parts[0].RunID, p.RunID)
		assert.Equal(t, parts[0].CenterIndices, p.CenterIndices)
		assert.Equal(t, parts[0].CenterIDs, p.CenterIDs)
	}
	return exemplar.Merge(parts)
}

func TestDistributed_MatchesSingleProcess(t *testing.T) {
	data := testutil.Uniform(21, 240, 2)

	algorithms := []struct {
		name string
		fn   clusterFunc
		opts []exemplar.Option
	}{
		{"kcenters", exemplar.KCenters[[]float64], []exemplar.Option{exemplar.WithNClusters(9)}},
		{"kcenters random first", exemplar.KCenters[[]float64], []exemplar.Option{
			exemplar.WithNClusters(9), exemplar.WithRandomFirstCenter(true), exemplar.WithSeed(5),
		}},
		{"kcenters radius", exemplar.KCenters[[]float64], []exemplar.Option{exemplar.WithClusterRadius(0.2)}},
		{"kcenters init", exemplar.KCenters[[]float64], []exemplar.Option{exemplar.WithNClusters(6), exemplar.WithInitCenters(200, 17)}},
		{"hybrid", exemplar.Hybrid[[]float64], []exemplar.Option{exemplar.WithNClusters(6), exemplar.WithSeed(2)}},
		{"hybrid gob", exemplar.Hybrid[[]float64], []exemplar.Option{
			exemplar.WithNClusters(6), exemplar.WithSeed(2), exemplar.WithCodec(codec.Gob{}),
		}},
		{"kmedoids", exemplar.KMedoids[[]float64], []exemplar.Option{exemplar.WithNClusters(5), exemplar.WithSeed(3)}},
	}

	for _, alg := range algorithms {
		want, err := alg.fn(context.Background(), data, euclidean(t), alg.opts...)
		require.NoError(t, err, alg.name)

		for _, workers := range []int{1, 2, 3, 7} {
			t.Run(fmt.Sprintf("%s/%d", alg.name, workers), func(t *testing.T) {
				got, err := runSharded(t, alg.fn, data, workers, alg.opts...)
				require.NoError(t, err)

				assert.Empty(t, cmp.Diff(want.CenterIndices, got.CenterIndices))
				assert.Empty(t, cmp.Diff(want.Centers, got.Centers))
				assert.Empty(t, cmp.Diff(want.Assignments, got.Assignments))
				assert.Empty(t, cmp.Diff(want.Distances, got.Distances))
			})
		}
	}
}

func TestDistributed_EmptyShards(t *testing.T) {
	data := testutil.Line(0, 1, 2, 10, 11, 20)

	got, err := runSharded(t, exemplar.KCenters[[]float64], data, 9, exemplar.WithNClusters(3))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5, 3}, got.CenterIndices)
	assert.Equal(t, []int{0, 0, 0, 2, 2, 1}, got.Assignments)
}

func TestDistributed_CenterIDs(t *testing.T) {
	data := testutil.Line(0, 1, 2, 10, 11, 20)
	shards, err := dataset.Shard(data, 2)
	require.NoError(t, err)
	g, err := collective.NewGroup(2)
	require.NoError(t, err)

	metric := euclidean(t)
	var ids []exemplar.ItemID
	err = g.Run(context.Background(), func(ctx context.Context, c collective.Collectives) error {
		res, err := exemplar.KCenters(ctx, shards[c.Rank()], metric,
			exemplar.WithNClusters(3), exemplar.WithCollectives(c))
		if err == nil && c.Rank() == 0 {
			ids = res.CenterIDs
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []exemplar.ItemID{{Rank: 0, Index: 0}, {Rank: 1, Index: 2}, {Rank: 1, Index: 0}}, ids)
}

func TestDistributed_WorkerFailureAbortsGroup(t *testing.T) {
	data := testutil.Uniform(4, 90, 2)
	shards, err := dataset.Shard(data, 3)
	require.NoError(t, err)
	g, err := collective.NewGroup(3)
	require.NoError(t, err)

	broken := func(candidates dataset.Dataset[[]float64], _ []float64) []float64 {
		return make([]float64, candidates.Len()+1)
	}

	good := euclidean(t)
	errs := make([]error, 3)
	err = g.Run(context.Background(), func(ctx context.Context, c collective.Collectives) error {
		metric := good
		if c.Rank() == 1 {
			metric = broken
		}
		_, errs[c.Rank()] = exemplar.KCenters(ctx, shards[c.Rank()], metric,
			exemplar.WithNClusters(4), exemplar.WithCollectives(c))
		return errs[c.Rank()]
	})
	require.Error(t, err)

	assert.ErrorIs(t, errs[1], exemplar.ErrDataInvalid)
	for _, rank := range []int{0, 2} {
		assert.True(t, errors.Is(errs[rank], collective.ErrAborted), "rank %d: %v", rank, errs[rank])
	}
}
