package exemplar_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/distance"
	"github.com/hupe1980/exemplar/testutil"
)

func TestHybrid_GaussianBlobs(t *testing.T) {
	data, _ := testutil.Blobs(42, blobCenters, 100, 1)

	res, err := exemplar.Hybrid(context.Background(), data, euclidean(t),
		exemplar.WithNClusters(3), exemplar.WithSeed(42))
	require.NoError(t, err)
	require.Len(t, res.Centers, 3)
	assert.Equal(t, []int{0, 1, 2}, unique(res.Assignments))

	near := func(p []float64, set [][]float64) bool {
		for _, q := range set {
			if distance.Euclidean(p, q) < 4 {
				return true
			}
		}
		return false
	}
	for _, c := range res.Centers {
		assert.True(t, near(c, blobCenters), "center %v is far from every generator", c)
	}
	for _, g := range blobCenters {
		assert.True(t, near(g, res.Centers), "generator %v has no center", g)
	}
}

func TestHybrid_NotWorseThanSeeding(t *testing.T) {
	data, _ := testutil.Blobs(8, blobCenters, 50, 1.2)
	metric := euclidean(t)

	seeded, err := exemplar.KCenters(context.Background(), data, metric, exemplar.WithNClusters(5))
	require.NoError(t, err)
	hybrid, err := exemplar.Hybrid(context.Background(), data, metric,
		exemplar.WithNClusters(5), exemplar.WithMedoidUpdates(10))
	require.NoError(t, err)

	assert.Equal(t, exemplar.AlgorithmHybrid, hybrid.Algorithm)
	assert.LessOrEqual(t, hybrid.Summary().Max, seeded.Summary().Max)

	labels, dists := testutil.Nearest(data, hybrid.Centers, distance.Euclidean)
	assert.Equal(t, labels, hybrid.Assignments)
	assert.Equal(t, dists, hybrid.Distances)
}

func TestHybrid_Invalid(t *testing.T) {
	data := testutil.Line(0, 1, 2)

	_, err := exemplar.Hybrid(context.Background(), data, euclidean(t), exemplar.WithMedoidUpdates(3))
	assert.ErrorIs(t, err, exemplar.ErrImproperlyConfigured)

	_, err = exemplar.Hybrid(context.Background(), data, euclidean(t),
		exemplar.WithNClusters(2), exemplar.WithMedoidUpdates(0))
	assert.ErrorIs(t, err, exemplar.ErrImproperlyConfigured)
}
