package distance

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Euclidean calculates the Euclidean (L2) distance between two vectors.
// Panics if the vectors differ in length.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean calculates the squared Euclidean distance between two vectors.
// Panics if the vectors differ in length.
func SquaredEuclidean(a, b []float64) float64 {
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	return floats.Dot(diff, diff)
}

// Manhattan calculates the Manhattan (L1) distance between two vectors.
// Panics if the vectors differ in length.
func Manhattan(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// RMSD calculates the root mean square deviation between two frames of flattened
// xyz coordinates (x0, y0, z0, x1, ...). Frames are assumed to be superposed already.
func RMSD(a, b []float64) float64 {
	if len(a)%3 != 0 {
		panic("distance: rmsd requires flattened xyz coordinates")
	}
	atoms := len(a) / 3
	if atoms == 0 {
		return 0
	}
	return math.Sqrt(SquaredEuclidean(a, b) / float64(atoms))
}

// Cosine calculates the cosine distance 1 - cos(a, b).
// A zero vector has distance 1 to everything except another zero vector.
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 && nb == 0 {
		return 0
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}

// Metric represents a built-in distance metric.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricSquaredEuclidean
	MetricManhattan
	MetricRMSD
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricSquaredEuclidean:
		return "sqeuclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricRMSD:
		return "rmsd"
	case MetricCosine:
		return "cosine"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric resolves a short symbolic metric name.
// Names are case-insensitive; "l2", "l1" and "cityblock" are accepted aliases.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "sqeuclidean", "squared_euclidean":
		return MetricSquaredEuclidean, nil
	case "manhattan", "cityblock", "l1":
		return MetricManhattan, nil
	case "rmsd":
		return MetricRMSD, nil
	case "cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float64) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return Euclidean, nil
	case MetricSquaredEuclidean:
		return SquaredEuclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricRMSD:
		return RMSD, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
