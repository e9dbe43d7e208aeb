// Package collective provides the cross-worker primitives used by the partitioned
// clustering engines.
//
// Workers never share memory and never stream point-to-point. Every interaction is a
// collective that all workers of a group enter in the same order:
//
//   - Broadcast: one root's payload is delivered to every worker.
//   - AllReduceMaxLoc: the global maximum of one value per worker, with its location.
//   - AllGatherInt: one integer per worker, gathered in rank order on every worker.
//   - Barrier: no data, synchronization only.
//
// Every collective is a barrier: no worker returns until all workers have contributed.
//
// # Implementations
//
//   - Single: a group of one; every collective is an identity.
//   - NewGroup / Run: n workers inside one process rendezvousing on a shared Hub.
//   - Serve / Dial: the same Hub exported over net/rpc, one OS process per rank.
//
// # Failure
//
// A failed or cancelled worker aborts the whole group. Abort releases every pending and
// future collective with an error wrapping ErrAborted, so peers never stay blocked at a
// barrier after one participant gives up. A worker that dies without aborting stalls the
// group; bound collectives with a context deadline.
package collective
