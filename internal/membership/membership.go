// Package membership indexes cluster members by label using roaring bitmaps.
//
// The index is built once from an assignment vector and then kept current with Move
// as medoid swaps shift items between clusters. Select maps an ordinal drawn over a
// cluster's membership count back to a concrete item, which is how a uniform member
// proposal is turned into an item index without materializing the member list.
package membership

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/exemplar/internal/conv"
)

// Index maps each label to the set of items assigned to it.
type Index struct {
	sets []*roaring.Bitmap
}

// Build indexes assignments over k labels. Labels outside [0, k) are rejected.
func Build(assignments []int, k int) (*Index, error) {
	x := &Index{sets: make([]*roaring.Bitmap, k)}
	for i := range x.sets {
		x.sets[i] = roaring.New()
	}
	for item, label := range assignments {
		if label < 0 || label >= k {
			return nil, fmt.Errorf("membership: item %d has label %d outside [0, %d)", item, label, k)
		}
		u, err := conv.IntToUint32(item)
		if err != nil {
			return nil, err
		}
		x.sets[label].Add(u)
	}
	for _, s := range x.sets {
		s.RunOptimize()
	}
	return x, nil
}

// Move reassigns item from one label to another.
func (x *Index) Move(item, from, to int) {
	if from == to {
		return
	}
	u := conv.MustIntToUint32(item)
	x.sets[from].Remove(u)
	x.sets[to].Add(u)
}

// Count returns the number of items carrying label.
func (x *Index) Count(label int) int {
	return int(x.sets[label].GetCardinality())
}

// Members returns the items carrying label in ascending order.
func (x *Index) Members(label int) []int {
	arr := x.sets[label].ToArray()
	out := make([]int, len(arr))
	for i, v := range arr {
		out[i] = int(v)
	}
	return out
}

// Select returns the ordinal-th smallest item carrying label.
func (x *Index) Select(label, ordinal int) (int, error) {
	if ordinal < 0 || ordinal >= x.Count(label) {
		return 0, fmt.Errorf("membership: ordinal %d outside [0, %d) for label %d", ordinal, x.Count(label), label)
	}
	v, err := x.sets[label].Select(conv.MustIntToUint32(ordinal))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
