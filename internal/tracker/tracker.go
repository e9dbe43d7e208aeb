// Package tracker maintains the nearest-center bookkeeping shared by all clustering
// engines: for every local item, the label of its assigned center and the distance to
// that center.
//
// The tracker is updated incrementally. Admitting a center costs one pass over the
// distances to that center; assignments are never recomputed against the full center
// set.
package tracker

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// MoveFunc observes an item changing label.
type MoveFunc func(item, from, to int)

// Tracker holds co-indexed assignment and distance vectors.
//
// Invariant: after every mutation, Distances[i] is the distance from item i to the
// center labelled Assignments[i].
type Tracker struct {
	Assignments []int
	Distances   []float64

	// OnMove, if set, is called for every item whose label changes.
	OnMove MoveFunc

	centers int
}

// New creates a tracker for n items with no centers.
// Every distance starts at +Inf.
func New(n int) *Tracker {
	d := make([]float64, n)
	for i := range d {
		d[i] = math.Inf(1)
	}
	return &Tracker{
		Assignments: make([]int, n),
		Distances:   d,
	}
}

// Restore creates a tracker from existing state with k centers.
// The slices are copied.
func Restore(assignments []int, distances []float64, k int) *Tracker {
	return &Tracker{
		Assignments: slices.Clone(assignments),
		Distances:   slices.Clone(distances),
		centers:     k,
	}
}

// Len returns the number of tracked items.
func (t *Tracker) Len() int { return len(t.Distances) }

// Centers returns the number of admitted centers.
func (t *Tracker) Centers() int { return t.centers }

// Admit records a new center with the next free label.
// dists holds the distance from every item to the new center.
// It returns the label and the number of items that switched to it.
func (t *Tracker) Admit(dists []float64) (label, moved int) {
	label = t.centers
	t.centers++

	if label == 0 {
		copy(t.Distances, dists)
		for i := range t.Assignments {
			t.Assignments[i] = 0
		}
		return 0, len(dists)
	}

	for i, d := range dists {
		if d < t.Distances[i] {
			t.move(i, label)
			t.Distances[i] = d
			moved++
		}
	}
	return label, moved
}

// Swap replaces the center behind label by a new center.
//
// dists holds the distance from every item to the new center. members lists the items
// carrying label before the swap; alt[j][k] is the distance from members[k] to the
// center labelled j (alt[label] is ignored). Former members go to their nearest
// center; every other item switches to label only if the new center is strictly
// closer, or equally close with a lower label. Ties always resolve to the lowest label.
func (t *Tracker) Swap(label int, dists []float64, members []int, alt [][]float64) {
	inCluster := make(map[int]struct{}, len(members))
	for _, m := range members {
		inCluster[m] = struct{}{}
	}

	for i, d := range dists {
		if _, ok := inCluster[i]; ok {
			continue
		}
		cur := t.Assignments[i]
		if d < t.Distances[i] || (d == t.Distances[i] && label < cur) {
			t.move(i, label)
			t.Distances[i] = d
		}
	}

	for k, m := range members {
		best, bestLabel := dists[m], label
		for j := range alt {
			if j == label {
				continue
			}
			d := alt[j][k]
			if d < best || (d == best && j < bestLabel) {
				best, bestLabel = d, j
			}
		}
		t.move(m, bestLabel)
		t.Distances[m] = best
	}
}

// Farthest returns the largest recorded distance and the lowest index holding it.
// It returns (-Inf, -1) when there are no items.
func (t *Tracker) Farthest() (float64, int) {
	if len(t.Distances) == 0 {
		return math.Inf(-1), -1
	}
	idx := floats.MaxIdx(t.Distances)
	return t.Distances[idx], idx
}

// MaxOver returns the largest distance among items, or -Inf if items is empty.
func (t *Tracker) MaxOver(items []int) float64 {
	m := math.Inf(-1)
	for _, i := range items {
		if d := t.Distances[i]; d > m {
			m = d
		}
	}
	return m
}

func (t *Tracker) move(item, to int) {
	from := t.Assignments[item]
	t.Assignments[item] = to
	if t.OnMove != nil && from != to {
		t.OnMove(item, from, to)
	}
}
