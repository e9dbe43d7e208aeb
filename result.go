package exemplar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ItemID identifies an item of a partitioned dataset by the rank of the worker that
// owns it and its row within that worker's partition. In single-process runs Rank is
// always 0 and Index is the flat index.
type ItemID struct {
	Rank  int `json:"rank"`
	Index int `json:"index"`
}

// externalID marks a center that is not an item of the data.
var externalID = ItemID{Rank: -1, Index: -1}

func (id ItemID) String() string { return fmt.Sprintf("%d:%d", id.Rank, id.Index) }

// Result is the outcome of a clustering or prediction call.
//
// Assignments and Distances cover the items of the calling worker only; the center
// fields are replicated and identical on every worker.
type Result[T any] struct {
	// RunID identifies the call in logs and persisted output.
	RunID string

	// Algorithm names the engine that produced the result.
	Algorithm string

	// CenterIDs holds the (rank, index) of every center; label i is CenterIDs[i].
	// Centers given with WithInitCenterItems are {-1, -1}. It is nil for predictions
	// against external centers.
	CenterIDs []ItemID

	// CenterIndices holds the flat global index of every center, or -1 for a center
	// that is not an item of the data.
	CenterIndices []int

	// Centers holds the realized center items in label order.
	Centers []T

	// Assignments holds the label of every local item.
	Assignments []int

	// Distances holds the distance of every local item to its center.
	Distances []float64

	// Lengths holds the item count of every worker, in rank order.
	Lengths []int

	// Rank is the worker that produced the result.
	Rank int
}

// NClusters returns the number of centers.
func (r *Result[T]) NClusters() int { return len(r.Centers) }

// Offset returns the global index of this worker's first item.
func (r *Result[T]) Offset() int {
	off := 0
	for rank := 0; rank < r.Rank && rank < len(r.Lengths); rank++ {
		off += r.Lengths[rank]
	}
	return off
}

// Location is the position of an item within a segmented dataset.
type Location struct {
	Segment int `json:"segment"`
	Offset  int `json:"offset"`
}

// Partitioned re-expresses a Result per segment (for example, per trajectory).
type Partitioned[T any] struct {
	Assignments [][]int
	Distances   [][]float64

	// CenterLocations holds the (segment, offset) of every center. Centers that lie
	// outside the partitioned span, such as those owned by other workers, are
	// reported as {-1, -1}.
	CenterLocations []Location

	Centers []T
}

// Partition splits the result into consecutive segments of the given lengths.
// The per-segment slices alias the result. It fails with ErrDataInvalid unless the
// lengths are non-negative and sum to len(Assignments).
func (r *Result[T]) Partition(lengths []int) (*Partitioned[T], error) {
	total := 0
	for i, n := range lengths {
		if n < 0 {
			return nil, dataError("segment %d has negative length %d", i, n)
		}
		total += n
	}
	if total != len(r.Assignments) {
		return nil, &ErrLengthMismatch{What: "segment lengths", Expected: len(r.Assignments), Actual: total}
	}

	p := &Partitioned[T]{
		Assignments:     make([][]int, len(lengths)),
		Distances:       make([][]float64, len(lengths)),
		CenterLocations: make([]Location, len(r.CenterIndices)),
		Centers:         r.Centers,
	}
	lo := 0
	for i, n := range lengths {
		hi := lo + n
		p.Assignments[i] = r.Assignments[lo:hi:hi]
		p.Distances[i] = r.Distances[lo:hi:hi]
		lo = hi
	}

	base := r.Offset()
	for c, global := range r.CenterIndices {
		p.CenterLocations[c] = locate(lengths, global-base)
	}
	return p, nil
}

func locate(lengths []int, idx int) Location {
	if idx < 0 {
		return Location{Segment: -1, Offset: -1}
	}
	for seg, n := range lengths {
		if idx < n {
			return Location{Segment: seg, Offset: idx}
		}
		idx -= n
	}
	return Location{Segment: -1, Offset: -1}
}

// Summary describes the distribution of item-to-center distances.
type Summary struct {
	Mean   float64
	StdDev float64
	Max    float64
}

// Summary returns the population mean, standard deviation and maximum of Distances.
func (r *Result[T]) Summary() Summary {
	if len(r.Distances) == 0 {
		return Summary{Mean: math.NaN(), StdDev: math.NaN(), Max: math.NaN()}
	}
	mean, variance := stat.PopMeanVariance(r.Distances, nil)
	return Summary{Mean: mean, StdDev: math.Sqrt(variance), Max: floats.Max(r.Distances)}
}

// Merge concatenates the worker results of one partitioned run, in rank order, into
// a single result covering every item.
func Merge[T any](parts []*Result[T]) (*Result[T], error) {
	if len(parts) == 0 {
		return nil, dataError("no results to merge")
	}
	first := parts[0]
	if len(parts) != len(first.Lengths) {
		return nil, &ErrLengthMismatch{What: "worker results", Expected: len(first.Lengths), Actual: len(parts)}
	}

	out := &Result[T]{
		RunID:         first.RunID,
		Algorithm:     first.Algorithm,
		CenterIDs:     first.CenterIDs,
		CenterIndices: first.CenterIndices,
		Centers:       first.Centers,
	}
	total := 0
	for rank, p := range parts {
		if p.Rank != rank {
			return nil, dataError("result at position %d comes from rank %d", rank, p.Rank)
		}
		if p.RunID != first.RunID {
			return nil, dataError("rank %d belongs to run %s, want %s", rank, p.RunID, first.RunID)
		}
		out.Assignments = append(out.Assignments, p.Assignments...)
		out.Distances = append(out.Distances, p.Distances...)
		total += len(p.Assignments)
	}
	out.Lengths = []int{total}
	return out, nil
}

// FindClusterCenters returns, for each of k labels, the index of the assigned item
// closest to its center, or -1 for a label with no items. Ties go to the lowest index.
func FindClusterCenters(assignments []int, distances []float64, k int) ([]int, error) {
	if len(assignments) != len(distances) {
		return nil, &ErrLengthMismatch{What: "distances", Expected: len(assignments), Actual: len(distances)}
	}
	centers := make([]int, k)
	best := make([]float64, k)
	for c := range centers {
		centers[c] = -1
		best[c] = math.Inf(1)
	}
	for i, label := range assignments {
		if label < 0 || label >= k {
			return nil, &ErrIndexOutOfRange{Index: label, Len: k}
		}
		if d := distances[i]; centers[label] < 0 || d < best[label] {
			centers[label] = i
			best[label] = d
		}
	}
	return centers, nil
}
