package exemplar_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/distance"
	"github.com/hupe1980/exemplar/testutil"
)

var blobCenters = [][]float64{{0, 0}, {10, 10}, {10, 0}}

func TestRefine_NonWorsening(t *testing.T) {
	data, _ := testutil.Blobs(2, blobCenters, 60, 1.5)
	metric := euclidean(t)

	res, err := exemplar.KCenters(context.Background(), data, metric, exemplar.WithNClusters(6))
	require.NoError(t, err)

	prevMax := res.Summary().Max
	for round := 0; round < 8; round++ {
		res, err = exemplar.Refine(context.Background(), data, metric, res,
			exemplar.WithMedoidUpdates(1),
			exemplar.WithSeed(uint64(round)),
		)
		require.NoError(t, err)

		maxDist := res.Summary().Max
		assert.LessOrEqual(t, maxDist, prevMax, "round %d", round)
		prevMax = maxDist

		labels, dists := testutil.Nearest(data, res.Centers, distance.Euclidean)
		assert.Equal(t, labels, res.Assignments, "round %d", round)
		assert.Equal(t, dists, res.Distances, "round %d", round)

		for label, idx := range res.CenterIndices {
			assert.Equal(t, data.At(idx), res.Centers[label])
		}
	}
}

func TestRefine_LeavesPreviousUntouched(t *testing.T) {
	data, _ := testutil.Blobs(4, blobCenters, 30, 1)
	metric := euclidean(t)

	prev, err := exemplar.KCenters(context.Background(), data, metric, exemplar.WithNClusters(3))
	require.NoError(t, err)
	assig := slices.Clone(prev.Assignments)
	dists := slices.Clone(prev.Distances)
	centers := slices.Clone(prev.CenterIndices)

	_, err = exemplar.Refine(context.Background(), data, metric, prev, exemplar.WithMedoidUpdates(3))
	require.NoError(t, err)

	assert.Equal(t, assig, prev.Assignments)
	assert.Equal(t, dists, prev.Distances)
	assert.Equal(t, centers, prev.CenterIndices)
}

func TestRefine_Invalid(t *testing.T) {
	data := testutil.Line(0, 1, 2, 10, 11, 20)
	metric := euclidean(t)

	prev, err := exemplar.KCenters(context.Background(), data, metric, exemplar.WithNClusters(2))
	require.NoError(t, err)

	_, err = exemplar.Refine(context.Background(), data, metric, prev, exemplar.WithMedoidUpdates(0))
	assert.ErrorIs(t, err, exemplar.ErrImproperlyConfigured)

	_, err = exemplar.Refine(context.Background(), data, metric, prev, exemplar.WithMedoidUpdates(-2))
	assert.ErrorIs(t, err, exemplar.ErrImproperlyConfigured)

	_, err = exemplar.Refine(context.Background(), data, metric, nil)
	assert.ErrorIs(t, err, exemplar.ErrImproperlyConfigured)

	_, err = exemplar.Refine(context.Background(), testutil.Line(0, 1), metric, prev)
	assert.ErrorIs(t, err, exemplar.ErrDataInvalid)

	predicted, err := exemplar.Predict(context.Background(), prev.Centers, data, metric)
	require.NoError(t, err)
	_, err = exemplar.Refine(context.Background(), data, metric, predicted)
	assert.ErrorIs(t, err, exemplar.ErrImproperlyConfigured, "predictions carry no center ids")
}

func TestRefine_MovesOutlierCenterInward(t *testing.T) {
	// One cluster, seeded at its leftmost point.
	data := testutil.Line(0, 4, 5, 6, 7, 8, 9, 10)
	metric := euclidean(t)

	prev, err := exemplar.KCenters(context.Background(), data, metric, exemplar.WithNClusters(1))
	require.NoError(t, err)
	require.Equal(t, []int{0}, prev.CenterIndices)
	require.Equal(t, 10.0, prev.Summary().Max)

	// Every member other than the current medoid is a no-worse medoid, so any draw
	// that does not hit item 0 is accepted.
	moved := 0
	for seed := uint64(0); seed < 10; seed++ {
		res, err := exemplar.Refine(context.Background(), data, metric, prev,
			exemplar.WithMedoidUpdates(1), exemplar.WithSeed(seed))
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Summary().Max, 10.0)
		if res.CenterIndices[0] != 0 {
			moved++
		}
	}
	assert.Greater(t, moved, 0)
}

func TestKMedoids(t *testing.T) {
	data, _ := testutil.Blobs(5, blobCenters, 40, 1)
	metric := euclidean(t)

	res, err := exemplar.KMedoids(context.Background(), data, metric,
		exemplar.WithNClusters(3), exemplar.WithSeed(1))
	require.NoError(t, err)

	assert.Equal(t, exemplar.AlgorithmKMedoids, res.Algorithm)
	assert.Len(t, res.Centers, 3)
	assert.Len(t, unique(res.CenterIndices), 3)

	labels, dists := testutil.Nearest(data, res.Centers, distance.Euclidean)
	assert.Equal(t, labels, res.Assignments)
	assert.Equal(t, dists, res.Distances)

	again, err := exemplar.KMedoids(context.Background(), data, metric,
		exemplar.WithNClusters(3), exemplar.WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, res.CenterIndices, again.CenterIndices)
}

func TestKMedoids_InitCenters(t *testing.T) {
	data := testutil.Line(0, 1, 2, 10, 11, 12)

	res, err := exemplar.KMedoids(context.Background(), data, euclidean(t),
		exemplar.WithNClusters(2), exemplar.WithInitCenters(0, 5), exemplar.WithMedoidUpdates(20))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, res.Assignments)
}

func TestKMedoids_Invalid(t *testing.T) {
	data := testutil.Line(0, 1, 2)
	metric := euclidean(t)

	tests := []struct {
		name string
		opts []exemplar.Option
		want error
	}{
		{"no clusters", nil, exemplar.ErrImproperlyConfigured},
		{"radius", []exemplar.Option{exemplar.WithNClusters(2), exemplar.WithClusterRadius(1)}, exemplar.ErrImproperlyConfigured},
		{"zero rounds", []exemplar.Option{exemplar.WithNClusters(2), exemplar.WithMedoidUpdates(0)}, exemplar.ErrImproperlyConfigured},
		{"too many clusters", []exemplar.Option{exemplar.WithNClusters(4)}, exemplar.ErrDataInvalid},
		{"init count", []exemplar.Option{exemplar.WithNClusters(2), exemplar.WithInitCenters(0)}, exemplar.ErrImproperlyConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exemplar.KMedoids(context.Background(), data, metric, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKMedoids_Metrics(t *testing.T) {
	data, _ := testutil.Blobs(6, blobCenters, 20, 1)
	mc := &exemplar.BasicMetricsCollector{}

	_, err := exemplar.KMedoids(context.Background(), data, euclidean(t),
		exemplar.WithNClusters(3), exemplar.WithMedoidUpdates(4), exemplar.WithMetricsCollector(mc))
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(3), stats.CentersAdmitted)
	assert.GreaterOrEqual(t, stats.MedoidRounds, int64(1))
	assert.LessOrEqual(t, stats.MedoidRounds, int64(4))
	assert.LessOrEqual(t, stats.MedoidSwaps, stats.MedoidProposals)
}
