package collective

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrAborted is returned by every collective after the group was aborted.
	ErrAborted = errors.New("collective: aborted")

	// ErrMismatch indicates workers entered different collectives at the same step.
	ErrMismatch = errors.New("collective: mismatched operation")

	// ErrClosed is returned after the transport was closed.
	ErrClosed = errors.New("collective: closed")
)

// MaxLoc is the result of an all-reduce of (value, index) pairs under max.
type MaxLoc struct {
	Value float64
	Rank  int
	Index int
}

// Collectives is the per-worker handle on a group.
//
// A handle must be used by one goroutine at a time; all workers of a group must issue
// the same sequence of collectives.
type Collectives interface {
	// Rank returns this worker's position in [0, Size()).
	Rank() int

	// Size returns the number of workers.
	Size() int

	// Barrier blocks until every worker has entered it.
	Barrier(ctx context.Context) error

	// Broadcast returns root's payload on every worker.
	// Non-root workers' payloads are ignored.
	Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error)

	// AllReduceMaxLoc returns the largest value across workers together with the
	// contributing rank and the index it supplied. Ties resolve to the lowest rank.
	AllReduceMaxLoc(ctx context.Context, value float64, index int) (MaxLoc, error)

	// AllGatherInt returns every worker's value ordered by rank.
	AllGatherInt(ctx context.Context, value int) ([]int, error)

	// Abort fails the group. Pending and future collectives on every worker return an
	// error wrapping ErrAborted and err.
	Abort(err error)
}

type single struct{}

// Single returns the collectives of a group with one worker.
func Single() Collectives { return single{} }

func (single) Rank() int                         { return 0 }
func (single) Size() int                         { return 1 }
func (single) Barrier(ctx context.Context) error { return ctx.Err() }
func (single) Abort(error)                       {}

func (single) Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error) {
	if root != 0 {
		return nil, ErrMismatch
	}
	return payload, ctx.Err()
}

func (single) AllReduceMaxLoc(ctx context.Context, value float64, index int) (MaxLoc, error) {
	return MaxLoc{Value: value, Rank: 0, Index: index}, ctx.Err()
}

func (single) AllGatherInt(ctx context.Context, value int) ([]int, error) {
	return []int{value}, ctx.Err()
}

// AllReduceMax returns the global maximum of value.
func AllReduceMax(ctx context.Context, c Collectives, value float64) (float64, error) {
	ml, err := c.AllReduceMaxLoc(ctx, value, 0)
	if err != nil {
		return math.NaN(), err
	}
	return ml.Value, nil
}

// Offsets returns, for every rank, the global index of its first item given the
// per-rank lengths, plus the total item count.
func Offsets(lengths []int) ([]int, int) {
	offsets := make([]int, len(lengths))
	total := 0
	for r, n := range lengths {
		offsets[r] = total
		total += n
	}
	return offsets, total
}

// Locate maps a global index to (rank, local index) given per-rank lengths.
// It returns false if global is out of range.
func Locate(lengths []int, global int) (rank, local int, ok bool) {
	if global < 0 {
		return 0, 0, false
	}
	for r, n := range lengths {
		if global < n {
			return r, global, true
		}
		global -= n
	}
	return 0, 0, false
}
