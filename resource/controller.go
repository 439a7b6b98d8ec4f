// Package resource bounds what a quantization process consumes: concurrent
// image requests, decoded-pixel memory, and hit-file write throughput.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the maximum number of images processed concurrently.
	// If 0, defaults to 1.
	MaxWorkers int64

	// PixelMemoryLimitBytes caps the total bytes of decoded image pixels
	// held in memory across in-flight requests. If 0, only tracking is done.
	PixelMemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum write throughput for hit files and
	// blob uploads. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages process-wide resources. The zero-value methods on a
// nil Controller are no-ops so callers can leave limits unconfigured.
type Controller struct {
	cfg Config

	workerSem *semaphore.Weighted

	pixelSem  *semaphore.Weighted // nil if unlimited
	pixelUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.PixelMemoryLimitBytes > 0 {
		c.pixelSem = semaphore.NewWeighted(cfg.PixelMemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireWorker reserves one processing slot, blocking until one is free or
// ctx is canceled.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workerSem.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workerSem.TryAcquire(1)
}

// ReleaseWorker releases a processing slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workerSem.Release(1)
}

// AcquirePixels reserves memory for a decoded image's pixels. With a hard
// limit configured this blocks until enough is free or ctx is canceled.
func (c *Controller) AcquirePixels(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.pixelSem != nil {
		if err := c.pixelSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.pixelUsed.Add(bytes)
	return nil
}

// ReleasePixels releases reserved pixel memory.
func (c *Controller) ReleasePixels(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.pixelSem != nil {
		c.pixelSem.Release(bytes)
	}
	c.pixelUsed.Add(-bytes)
}

// PixelUsage returns the currently reserved pixel memory in bytes.
func (c *Controller) PixelUsage() int64 {
	if c == nil {
		return 0
	}
	return c.pixelUsed.Load()
}

// AcquireIO waits until the IO budget allows the specified number of bytes.
// Requests larger than the burst are split so a big buffered flush waits
// instead of failing.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
