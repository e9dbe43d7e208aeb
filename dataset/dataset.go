package dataset

import "fmt"

// Dataset is an ordered collection of items.
//
// Implementations must not be mutated while a clustering run is using them.
type Dataset[T any] interface {
	// Len returns the number of items.
	Len() int

	// At returns the item at index i.
	At(i int) T

	// Slice returns a view of the items in [lo, hi).
	Slice(lo, hi int) Dataset[T]

	// Subset returns a collection holding the items at the given indices, in order.
	Subset(indices []int) Dataset[T]
}

// Items is a slice-backed Dataset.
type Items[T any] []T

// Len implements Dataset.
func (s Items[T]) Len() int { return len(s) }

// At implements Dataset.
func (s Items[T]) At(i int) T { return s[i] }

// Slice implements Dataset.
func (s Items[T]) Slice(lo, hi int) Dataset[T] { return s[lo:hi:hi] }

// Subset implements Dataset.
func (s Items[T]) Subset(indices []int) Dataset[T] {
	out := make(Items[T], len(indices))
	for i, idx := range indices {
		out[i] = s[idx]
	}
	return out
}

// Collect copies every item of ds into a slice.
func Collect[T any](ds Dataset[T]) []T {
	out := make([]T, ds.Len())
	for i := range out {
		out[i] = ds.At(i)
	}
	return out
}

// Shard splits ds into n contiguous shards whose lengths differ by at most one.
// Earlier shards receive the extra items.
func Shard[T any](ds Dataset[T], n int) ([]Dataset[T], error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset: shard count must be positive, got %d", n)
	}
	total := ds.Len()
	base, extra := total/n, total%n

	shards := make([]Dataset[T], n)
	lo := 0
	for i := range shards {
		size := base
		if i < extra {
			size++
		}
		shards[i] = ds.Slice(lo, lo+size)
		lo += size
	}
	return shards, nil
}

// Lengths returns the length of every dataset in order.
func Lengths[T any](parts []Dataset[T]) []int {
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i] = p.Len()
	}
	return out
}
