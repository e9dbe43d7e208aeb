package collective

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"
)

const serviceName = "Collective"

// StepArgs is one worker's contribution to a remote collective step.
type StepArgs struct {
	Rank    int
	Seq     uint64
	Op      uint8
	Root    int
	Payload []byte
	Value   float64
	Index   int
}

// StepReply is the combined outcome of a remote collective step.
type StepReply struct {
	Payload []byte
	Value   float64
	Rank    int
	Index   int
	Ints    []int
}

// JoinArgs announces a worker to the coordinator.
type JoinArgs struct {
	Rank int
	Size int
}

// AbortArgs carries a remote abort.
type AbortArgs struct {
	Rank   int
	Reason string
}

// Ack is the empty reply of calls that return no data.
type Ack struct{ OK bool }

// Service exposes a Hub over net/rpc.
type Service struct {
	hub  *Hub
	left chan int
}

// Join validates that the caller agrees on the group size.
func (s *Service) Join(args *JoinArgs, _ *Ack) error {
	if args.Size != s.hub.size {
		return fmt.Errorf("group size %d, coordinator expects %d", args.Size, s.hub.size)
	}
	if args.Rank < 0 || args.Rank >= s.hub.size {
		return fmt.Errorf("rank %d outside group of %d", args.Rank, s.hub.size)
	}
	return nil
}

// Step contributes to a collective and waits for its outcome.
func (s *Service) Step(args *StepArgs, reply *StepReply) error {
	out, err := s.hub.contribute(context.Background(), args.Rank, args.Seq, &contribution{
		op:      opKind(args.Op),
		root:    args.Root,
		payload: args.Payload,
		value:   args.Value,
		index:   args.Index,
	})
	if err != nil {
		return err
	}
	reply.Payload = out.payload
	reply.Value = out.maxLoc.Value
	reply.Rank = out.maxLoc.Rank
	reply.Index = out.maxLoc.Index
	reply.Ints = out.ints
	return nil
}

// Leave records that a remote worker has received its last reply.
func (s *Service) Leave(args *JoinArgs, _ *Ack) error {
	select {
	case s.left <- args.Rank:
	default:
	}
	return nil
}

// Abort fails the group on behalf of a remote worker.
func (s *Service) Abort(args *AbortArgs, _ *Ack) error {
	s.hub.Abort(fmt.Errorf("rank %d: %s", args.Rank, args.Reason))
	return nil
}

// Server is the coordinator of a multi-process group.
type Server struct {
	hub  *Hub
	ln   net.Listener
	left chan int

	closeOnce sync.Once
	done      chan struct{}
}

// Serve starts a coordinator for size workers on ln. The coordinator's own process
// takes part through Member.
func Serve(ln net.Listener, size int) (*Server, error) {
	hub, err := NewHub(size)
	if err != nil {
		return nil, err
	}
	left := make(chan int, size)
	srv := rpc.NewServer()
	if err := srv.RegisterName(serviceName, &Service{hub: hub, left: left}); err != nil {
		return nil, err
	}
	s := &Server{hub: hub, ln: ln, left: left, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		srv.Accept(ln)
	}()
	return s, nil
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Member returns a local handle for rank, bypassing the network.
func (s *Server) Member(rank int) (Collectives, error) { return s.hub.Member(rank) }

// Drain waits until n remote workers have left through Close, or ctx is done.
// The coordinator calls it before Close so that no reply is cut off.
func (s *Server) Drain(ctx context.Context, n int) error {
	for range n {
		select {
		case <-s.left:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops accepting connections and aborts any pending collective.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.hub.Abort(ErrClosed)
		err = s.ln.Close()
		<-s.done
	})
	return err
}

type remote struct {
	client *rpc.Client
	rank   int
	size   int
	seq    uint64
}

// Dial connects rank to the coordinator at addr, retrying until ctx is done.
func Dial(ctx context.Context, addr string, rank, size int) (Collectives, error) {
	var d net.Dialer
	backoff := 50 * time.Millisecond
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			client := rpc.NewClient(conn)
			r := &remote{client: client, rank: rank, size: size}
			if err := r.call(ctx, serviceName+".Join", &JoinArgs{Rank: rank, Size: size}, &Ack{}); err != nil {
				_ = client.Close()
				return nil, err
			}
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("collective: dial %s: %w", addr, err)
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func (r *remote) Rank() int { return r.rank }
func (r *remote) Size() int { return r.size }

func (r *remote) call(ctx context.Context, method string, args, reply any) error {
	call := r.client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error == nil {
			return nil
		}
		var serverErr rpc.ServerError
		if errors.As(call.Error, &serverErr) {
			return fmt.Errorf("%w: %s", ErrAborted, serverErr)
		}
		if errors.Is(call.Error, rpc.ErrShutdown) {
			return fmt.Errorf("%w: %w", ErrAborted, ErrClosed)
		}
		return call.Error
	case <-ctx.Done():
		r.Abort(ctx.Err())
		return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
}

func (r *remote) step(ctx context.Context, args *StepArgs) (*StepReply, error) {
	r.seq++
	args.Rank = r.rank
	args.Seq = r.seq
	var reply StepReply
	if err := r.call(ctx, serviceName+".Step", args, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *remote) Barrier(ctx context.Context) error {
	_, err := r.step(ctx, &StepArgs{Op: uint8(opBarrier)})
	return err
}

func (r *remote) Broadcast(ctx context.Context, root int, payload []byte) ([]byte, error) {
	reply, err := r.step(ctx, &StepArgs{Op: uint8(opBroadcast), Root: root, Payload: payload})
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

func (r *remote) AllReduceMaxLoc(ctx context.Context, value float64, index int) (MaxLoc, error) {
	reply, err := r.step(ctx, &StepArgs{Op: uint8(opMaxLoc), Value: value, Index: index})
	if err != nil {
		return MaxLoc{}, err
	}
	return MaxLoc{Value: reply.Value, Rank: reply.Rank, Index: reply.Index}, nil
}

func (r *remote) AllGatherInt(ctx context.Context, value int) ([]int, error) {
	reply, err := r.step(ctx, &StepArgs{Op: uint8(opGather), Index: value})
	if err != nil {
		return nil, err
	}
	return reply.Ints, nil
}

// Abort notifies the coordinator without waiting for other workers.
func (r *remote) Abort(err error) {
	reason := "aborted"
	if err != nil {
		reason = err.Error()
	}
	call := r.client.Go(serviceName+".Abort", &AbortArgs{Rank: r.rank, Reason: reason}, &Ack{}, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
	case <-time.After(time.Second):
	}
}

// Close leaves the group and releases the connection of a Dial handle.
// It is a no-op for other implementations.
func Close(c Collectives) error {
	r, ok := c.(*remote)
	if !ok {
		return nil
	}
	call := r.client.Go(serviceName+".Leave", &JoinArgs{Rank: r.rank, Size: r.size}, &Ack{}, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
	case <-time.After(time.Second):
	}
	return r.client.Close()
}
