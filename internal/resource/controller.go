package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrentWrites is used when Config.MaxConcurrentWrites is not positive.
const DefaultMaxConcurrentWrites = 4

// Config holds write limits.
type Config struct {
	// MaxConcurrentWrites is the maximum number of blob writes in flight.
	// If 0, defaults to DefaultMaxConcurrentWrites.
	MaxConcurrentWrites int64

	// IOLimitBytesPerSec is the maximum write throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages write concurrency and throughput.
type Controller struct {
	writeSem  *semaphore.Weighted
	ioLimiter *rate.Limiter // nil if unlimited

	inflight atomic.Int64
	peak     atomic.Int64
	waits    atomic.Int64
	written  atomic.Int64
}

// NewController creates a new controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentWrites <= 0 {
		cfg.MaxConcurrentWrites = DefaultMaxConcurrentWrites
	}

	c := &Controller{
		writeSem: semaphore.NewWeighted(cfg.MaxConcurrentWrites),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireWrite reserves a write slot, blocking until one is free or ctx is done.
// Calls that find every slot taken are counted as waits.
func (c *Controller) AcquireWrite(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.TryAcquireWrite() {
		return nil
	}
	c.waits.Add(1)
	if err := c.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.track()
	return nil
}

// TryAcquireWrite reserves a write slot without blocking.
func (c *Controller) TryAcquireWrite() bool {
	if c == nil {
		return true
	}
	if !c.writeSem.TryAcquire(1) {
		return false
	}
	c.track()
	return true
}

func (c *Controller) track() {
	n := c.inflight.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// ReleaseWrite releases a slot taken by AcquireWrite or TryAcquireWrite.
func (c *Controller) ReleaseWrite() {
	if c == nil {
		return
	}
	c.inflight.Add(-1)
	c.writeSem.Release(1)
}

// AcquireIO waits until the throughput limit allows writing n bytes.
// Writes larger than one second of budget are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil {
		return nil
	}
	if c.ioLimiter != nil {
		burst := c.ioLimiter.Burst()
		for left := n; left > 0; left -= burst {
			if err := c.ioLimiter.WaitN(ctx, min(left, burst)); err != nil {
				return err
			}
		}
	}
	c.written.Add(int64(n))
	return nil
}

// Stats is a snapshot of controller counters.
type Stats struct {
	BytesWritten int64
	PeakWrites   int64
	WriteWaits   int64
}

// Stats returns the bytes admitted by AcquireIO, the highest number of concurrent
// writes seen and how many AcquireWrite calls had to wait for a slot.
func (c *Controller) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		BytesWritten: c.written.Load(),
		PeakWrites:   c.peak.Load(),
		WriteWaits:   c.waits.Load(),
	}
}
