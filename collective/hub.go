package collective

import (
	"context"
	"fmt"
	"sync"
)

type opKind uint8

const (
	opBarrier opKind = iota + 1
	opBroadcast
	opMaxLoc
	opGather
)

func (k opKind) String() string {
	switch k {
	case opBarrier:
		return "barrier"
	case opBroadcast:
		return "broadcast"
	case opMaxLoc:
		return "allreduce-maxloc"
	case opGather:
		return "allgather"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// contribution is one worker's input to a collective step.
type contribution struct {
	op      opKind
	root    int
	payload []byte
	value   float64
	index   int
}

// outcome is the combined result of a collective step, identical on every worker.
type outcome struct {
	payload []byte
	maxLoc  MaxLoc
	ints    []int
}

type round struct {
	contribs []*contribution
	arrived  int
	done     chan struct{}
	out      outcome
}

// Hub is the rendezvous point of a group. Workers contribute to numbered steps; a
// step completes once every rank has contributed, and all contributors receive the
// same outcome.
type Hub struct {
	size int

	mu      sync.Mutex
	rounds  map[uint64]*round
	err     error
	aborted chan struct{}
}

// NewHub creates a hub for size workers.
func NewHub(size int) (*Hub, error) {
	if size <= 0 {
		return nil, fmt.Errorf("collective: group size must be positive, got %d", size)
	}
	return &Hub{
		size:    size,
		rounds:  make(map[uint64]*round),
		aborted: make(chan struct{}),
	}, nil
}

// Size returns the number of workers.
func (h *Hub) Size() int { return h.size }

// Err returns the abort cause, or nil while the hub is healthy.
func (h *Hub) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Abort fails every pending and future step. Only the first cause is kept.
func (h *Hub) Abort(cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.abortLocked(cause)
}

func (h *Hub) abortLocked(cause error) {
	if h.err != nil {
		return
	}
	if cause == nil {
		cause = ErrClosed
	}
	h.err = fmt.Errorf("%w: %w", ErrAborted, cause)
	close(h.aborted)
}

func (h *Hub) contribute(ctx context.Context, rank int, seq uint64, c *contribution) (outcome, error) {
	if rank < 0 || rank >= h.size {
		return outcome{}, fmt.Errorf("collective: rank %d outside group of %d", rank, h.size)
	}

	h.mu.Lock()
	if h.err != nil {
		err := h.err
		h.mu.Unlock()
		return outcome{}, err
	}
	r, ok := h.rounds[seq]
	if !ok {
		r = &round{contribs: make([]*contribution, h.size), done: make(chan struct{})}
		h.rounds[seq] = r
	}
	if r.contribs[rank] != nil {
		h.abortLocked(fmt.Errorf("%w: rank %d contributed twice to step %d", ErrMismatch, rank, seq))
		err := h.err
		h.mu.Unlock()
		return outcome{}, err
	}
	r.contribs[rank] = c
	r.arrived++
	if r.arrived == h.size {
		delete(h.rounds, seq)
		out, err := combine(r.contribs)
		if err != nil {
			h.abortLocked(fmt.Errorf("step %d: %w", seq, err))
			err = h.err
			h.mu.Unlock()
			return outcome{}, err
		}
		r.out = out
		close(r.done)
	}
	h.mu.Unlock()

	select {
	case <-r.done:
		return r.out, nil
	default:
	}

	select {
	case <-r.done:
		return r.out, nil
	case <-h.aborted:
		return outcome{}, h.Err()
	case <-ctx.Done():
		h.Abort(fmt.Errorf("rank %d: %w", rank, ctx.Err()))
		return outcome{}, h.Err()
	}
}

func combine(contribs []*contribution) (outcome, error) {
	first := contribs[0]
	for rank, c := range contribs[1:] {
		if c.op != first.op {
			return outcome{}, fmt.Errorf("%w: rank 0 entered %s, rank %d entered %s", ErrMismatch, first.op, rank+1, c.op)
		}
		if c.op == opBroadcast && c.root != first.root {
			return outcome{}, fmt.Errorf("%w: broadcast roots %d and %d", ErrMismatch, first.root, c.root)
		}
	}

	switch first.op {
	case opBarrier:
		return outcome{}, nil
	case opBroadcast:
		if first.root < 0 || first.root >= len(contribs) {
			return outcome{}, fmt.Errorf("%w: broadcast root %d outside group", ErrMismatch, first.root)
		}
		return outcome{payload: contribs[first.root].payload}, nil
	case opMaxLoc:
		best := MaxLoc{Value: first.value, Rank: 0, Index: first.index}
		for rank, c := range contribs[1:] {
			if c.value > best.Value {
				best = MaxLoc{Value: c.value, Rank: rank + 1, Index: c.index}
			}
		}
		return outcome{maxLoc: best}, nil
	case opGather:
		ints := make([]int, len(contribs))
		for rank, c := range contribs {
			ints[rank] = c.index
		}
		return outcome{ints: ints}, nil
	default:
		return outcome{}, fmt.Errorf("%w: unknown %s", ErrMismatch, first.op)
	}
}

// member is one rank's handle on a Hub.
type member struct {
	hub  *Hub
	rank int
	seq  uint64
}

// Member returns the collectives of rank on h.
func (h *Hub) Member(rank int) (Collectives, error) {
	if rank < 0 || rank >= h.size {
		return nil, fmt.Errorf("collective: rank %d outside group of %d", rank, h.size)
	}
	return &member{hub: h, rank: rank}, nil
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.hub.size }

func (m *member) next(ctx context.Context, c *contribution) (outcome, error) {
	m.seq++
	return m.hub.contribute(ctx, m.rank, m.seq, c)
}

func (m *member) Barrier(ctx context.Context) error {
	_, err := m.next(ctx, &contribution{op: opBarrier})
	return err
}

func (m *member) Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error) {
	out, err := m.next(ctx, &contribution{op: opBroadcast, root: root, payload: payload})
	return out.payload, err
}

func (m *member) AllReduceMaxLoc(ctx context.Context, value float64, index int) (MaxLoc, error) {
	out, err := m.next(ctx, &contribution{op: opMaxLoc, value: value, index: index})
	return out.maxLoc, err
}

func (m *member) AllGatherInt(ctx context.Context, value int) ([]int, error) {
	out, err := m.next(ctx, &contribution{op: opGather, index: value})
	return out.ints, err
}

func (m *member) Abort(err error) {
	m.hub.Abort(fmt.Errorf("rank %d: %w", m.rank, err))
}
