package testutil

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/distance"
)

// Blobs draws perCenter samples from an isotropic Gaussian around every center.
// Rows are grouped by center, in center order. It also returns the generating label
// of every row.
func Blobs(seed uint64, centers [][]float64, perCenter int, sigma float64) (*dataset.Vectors, []int) {
	src := rand.New(rand.NewPCG(seed, seed^0x5eed))
	dim := len(centers[0])

	data := make([]float64, 0, len(centers)*perCenter*dim)
	labels := make([]int, 0, len(centers)*perCenter)
	for c, mu := range centers {
		for range perCenter {
			for d := 0; d < dim; d++ {
				n := distuv.Normal{Mu: mu[d], Sigma: sigma, Src: src}
				data = append(data, n.Rand())
			}
			labels = append(labels, c)
		}
	}
	v, err := dataset.NewVectors(data, dim)
	if err != nil {
		panic(err)
	}
	return v, labels
}

// Uniform draws n points uniformly from the unit hypercube of dimension dim.
func Uniform(seed uint64, n, dim int) *dataset.Vectors {
	src := rand.New(rand.NewPCG(seed, seed^0x5eed))
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	data := make([]float64, n*dim)
	for i := range data {
		data[i] = u.Rand()
	}
	v, err := dataset.NewVectors(data, dim)
	if err != nil {
		panic(err)
	}
	return v
}

// Line returns 1-D points at the given positions.
func Line(positions ...float64) *dataset.Vectors {
	v, err := dataset.NewVectors(append([]float64(nil), positions...), 1)
	if err != nil {
		panic(err)
	}
	return v
}

// Nearest returns, by exhaustive search, the label of the nearest center of every
// row and the distance to it. Ties resolve to the lowest label.
func Nearest(data dataset.Dataset[[]float64], centers [][]float64, fn distance.Func) ([]int, []float64) {
	labels := make([]int, data.Len())
	dists := make([]float64, data.Len())
	for i := range labels {
		best, bestLabel := math.Inf(1), -1
		for c, center := range centers {
			if d := fn(data.At(i), center); d < best {
				best, bestLabel = d, c
			}
		}
		labels[i] = bestLabel
		dists[i] = best
	}
	return labels, dists
}

// Recompute returns the distance of every row to the center it is assigned to.
func Recompute(data dataset.Dataset[[]float64], centers [][]float64, assignments []int, fn distance.Func) []float64 {
	out := make([]float64, data.Len())
	for i := range out {
		out[i] = fn(data.At(i), centers[assignments[i]])
	}
	return out
}
