package collective

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group is a set of in-process workers sharing one Hub.
type Group struct {
	hub     *Hub
	members []Collectives
}

// NewGroup creates a group of n in-process workers.
func NewGroup(n int) (*Group, error) {
	hub, err := NewHub(n)
	if err != nil {
		return nil, err
	}
	members := make([]Collectives, n)
	for rank := range members {
		members[rank], _ = hub.Member(rank)
	}
	return &Group{hub: hub, members: members}, nil
}

// Size returns the number of workers.
func (g *Group) Size() int { return len(g.members) }

// Member returns the collectives of rank.
func (g *Group) Member(rank int) Collectives { return g.members[rank] }

// Members returns every worker's collectives ordered by rank.
func (g *Group) Members() []Collectives { return g.members }

// Abort fails the whole group.
func (g *Group) Abort(err error) { g.hub.Abort(err) }

// Run executes fn once per rank, each on its own goroutine, and waits for all of them.
// The first failing worker aborts the group so the others leave their collectives.
// The returned error is the first non-nil error returned by any worker.
func (g *Group) Run(ctx context.Context, fn func(ctx context.Context, c Collectives) error) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, m := range g.members {
		eg.Go(func() error {
			if err := fn(egCtx, m); err != nil {
				m.Abort(err)
				return fmt.Errorf("rank %d: %w", m.Rank(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}
