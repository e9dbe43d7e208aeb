package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Writes(t *testing.T) {
	c := NewController(Config{MaxConcurrentWrites: 2})

	require.NoError(t, c.AcquireWrite(context.Background()))
	require.NoError(t, c.AcquireWrite(context.Background()))

	// Third slot blocks until the deadline.
	assert.False(t, c.TryAcquireWrite())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWrite(ctx), context.DeadlineExceeded)

	c.ReleaseWrite()
	assert.True(t, c.TryAcquireWrite())
	assert.Equal(t, int64(2), c.Stats().PeakWrites)
	assert.Equal(t, int64(1), c.Stats().WriteWaits)
}

func TestController_DefaultConcurrency(t *testing.T) {
	c := NewController(Config{})
	for range DefaultMaxConcurrentWrites {
		require.True(t, c.TryAcquireWrite())
	}
	assert.False(t, c.TryAcquireWrite())
}

func TestController_PeakUnderLoad(t *testing.T) {
	c := NewController(Config{MaxConcurrentWrites: 3})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.AcquireWrite(context.Background()); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			c.ReleaseWrite()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Stats().PeakWrites, int64(3))
	assert.GreaterOrEqual(t, c.Stats().PeakWrites, int64(1))
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})

	// Larger than the burst, admitted in steps.
	require.NoError(t, c.AcquireIO(context.Background(), 1500))
	assert.Equal(t, int64(1500), c.Stats().BytesWritten)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 1000))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireWrite(context.Background()))
	assert.True(t, c.TryAcquireWrite())
	c.ReleaseWrite()
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Equal(t, Stats{}, c.Stats())
}
