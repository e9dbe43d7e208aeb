package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/exemplar/distance"
)

func TestBlobs(t *testing.T) {
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 5}}

	data, labels := Blobs(4711, centers, 50, 0.5)

	require.Equal(t, 150, data.Len())
	assert.Equal(t, 2, data.Dim())
	require.Len(t, labels, 150)

	for i := range data.Len() {
		assert.Equal(t, i/50, labels[i])
		assert.Less(t, distance.Euclidean(data.At(i), centers[labels[i]]), 5.0, "row %d", i)
	}
}

func TestBlobs_Deterministic(t *testing.T) {
	a, _ := Blobs(7, [][]float64{{1, 2, 3}}, 20, 1)
	b, _ := Blobs(7, [][]float64{{1, 2, 3}}, 20, 1)
	c, _ := Blobs(8, [][]float64{{1, 2, 3}}, 20, 1)

	assert.Equal(t, a.Raw(), b.Raw())
	assert.NotEqual(t, a.Raw(), c.Raw())
}

func TestUniform(t *testing.T) {
	v := Uniform(4711, 100, 4)

	assert.Equal(t, 100, v.Len())
	assert.Equal(t, 4, v.Dim())
	assert.GreaterOrEqual(t, floats.Min(v.Raw()), 0.0)
	assert.Less(t, floats.Max(v.Raw()), 1.0)
	assert.Equal(t, v.Raw(), Uniform(4711, 100, 4).Raw())
}

func TestLine(t *testing.T) {
	positions := []float64{3, 1, 2}
	v := Line(positions...)
	positions[0] = 99

	assert.Equal(t, 3, v.Len())
	assert.Equal(t, []float64{3}, v.At(0))
}

func TestNearest(t *testing.T) {
	data := Line(0, 4, 5, 6, 10)
	centers := [][]float64{{0}, {10}}

	labels, dists := Nearest(data, centers, distance.Euclidean)

	// 5 is equidistant and goes to the lower label.
	assert.Equal(t, []int{0, 0, 0, 1, 1}, labels)
	assert.Equal(t, []float64{0, 4, 5, 4, 0}, dists)
}

func TestRecompute(t *testing.T) {
	data := Line(0, 4, 10)
	centers := [][]float64{{0}, {10}}

	assert.Equal(t, []float64{10, 4, 0}, Recompute(data, centers, []int{1, 0, 1}, distance.Euclidean))
}
