package resample

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ProgressCallback reports progress of a resampling pass. message names the
// pass; completed counts finished work units out of total.
type ProgressCallback func(completed, total int, message string)

type options struct {
	workers   int
	progress  ProgressCallback
	hitVolume bool
	cellSize  float64
}

// Option configures a resampling call.
type Option func(*options)

// WithWorkers bounds the number of goroutines used for per-element work.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress installs a progress callback. It is never called
// concurrently.
func WithProgress(cb ProgressCallback) Option {
	return func(o *options) { o.progress = cb }
}

// WithHitVolume asks Vol2Surf for a per-voxel count of projected points.
func WithHitVolume() Option {
	return func(o *options) { o.hitVolume = true }
}

// WithCellSize overrides the spatial hash cell edge used by Surf2Surf.
func WithCellSize(size float64) Option {
	return func(o *options) { o.cellSize = size }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	return o
}

// chunking splits n work units into contiguous chunks. Each chunk is handled
// by one goroutine and owns its own accumulators, so results do not depend
// on scheduling.
type chunking struct {
	n, size, count int
}

func split(n, workers int) chunking {
	if n <= 0 {
		return chunking{}
	}
	// A few chunks per worker keeps the pool busy when rows differ in cost.
	size := (n + 4*workers - 1) / (4 * workers)
	if size < 1 {
		size = 1
	}
	return chunking{n: n, size: size, count: (n + size - 1) / size}
}

func (c chunking) bounds(chunk int) (lo, hi int) {
	lo = chunk * c.size
	hi = min(lo+c.size, c.n)
	return lo, hi
}

// run calls fn once per chunk with at most workers goroutines and returns
// after every chunk has finished.
func (c chunking) run(o options, message string, fn func(chunk, lo, hi int)) {
	var (
		mu   sync.Mutex
		done int
	)
	var g errgroup.Group
	g.SetLimit(o.workers)
	for chunk := 0; chunk < c.count; chunk++ {
		chunk := chunk
		g.Go(func() error {
			lo, hi := c.bounds(chunk)
			fn(chunk, lo, hi)
			tracef("%s: chunk %d [%d,%d) done", message, chunk, lo, hi)
			if o.progress != nil {
				mu.Lock()
				done += hi - lo
				o.progress(done, c.n, message)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}
