package dataset

import (
	"fmt"
	"slices"
)

// Vectors is a row-major matrix of float64 feature vectors.
//
// At returns a view into the backing array; callers must not modify it.
type Vectors struct {
	data []float64
	dim  int
}

// Compile-time interface check
var _ Dataset[[]float64] = (*Vectors)(nil)

// NewVectors wraps a flattened row-major matrix with dim columns.
// The slice is not copied.
func NewVectors(data []float64, dim int) (*Vectors, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dataset: dimension must be positive, got %d", dim)
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("dataset: %d values do not form rows of dimension %d", len(data), dim)
	}
	return &Vectors{data: data, dim: dim}, nil
}

// FromRows copies rows into a new matrix. All rows must share one dimension.
func FromRows(rows [][]float64) (*Vectors, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: no rows")
	}
	dim := len(rows[0])
	data := make([]float64, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("dataset: row %d has dimension %d, want %d", i, len(r), dim)
		}
		data = append(data, r...)
	}
	return NewVectors(data, dim)
}

// Dim returns the number of columns.
func (v *Vectors) Dim() int { return v.dim }

// Len implements Dataset.
func (v *Vectors) Len() int { return len(v.data) / v.dim }

// At implements Dataset.
func (v *Vectors) At(i int) []float64 {
	return v.data[i*v.dim : (i+1)*v.dim : (i+1)*v.dim]
}

// Slice implements Dataset.
func (v *Vectors) Slice(lo, hi int) Dataset[[]float64] {
	return &Vectors{data: v.data[lo*v.dim : hi*v.dim], dim: v.dim}
}

// Subset implements Dataset. The returned matrix owns its data.
func (v *Vectors) Subset(indices []int) Dataset[[]float64] {
	data := make([]float64, 0, len(indices)*v.dim)
	for _, idx := range indices {
		data = append(data, v.At(idx)...)
	}
	return &Vectors{data: data, dim: v.dim}
}

// Raw returns the flattened backing slice.
func (v *Vectors) Raw() []float64 { return v.data }

// Clone returns a deep copy.
func (v *Vectors) Clone() *Vectors {
	return &Vectors{data: slices.Clone(v.data), dim: v.dim}
}

// Stride returns every n-th row starting at row 0, copied into a new matrix.
func (v *Vectors) Stride(n int) *Vectors {
	if n <= 1 {
		return v
	}
	data := make([]float64, 0, (v.Len()/n+1)*v.dim)
	for i := 0; i < v.Len(); i += n {
		data = append(data, v.At(i)...)
	}
	return &Vectors{data: data, dim: v.dim}
}
