package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/provis-io/provis/pkg/schema"
)

// PoolMetrics tracks worker pool operational metrics.
type PoolMetrics struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
	Rejected  int64 `json:"rejected"`
}

type task func(ctx context.Context)

// WorkerPool runs sessions on a fixed set of goroutines behind a bounded
// admission queue. Submissions beyond queue capacity are rejected
// immediately rather than queued without bound.
type WorkerPool struct {
	queue   chan task
	wg      sync.WaitGroup
	metrics PoolMetrics

	mu     sync.Mutex
	closed bool

	baseCtx context.Context
	stop    context.CancelFunc
}

// NewWorkerPool starts workers goroutines consuming a queue of queueSize.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		queue:   make(chan task, queueSize),
		baseCtx: ctx,
		stop:    cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for fn := range p.queue {
		p.run(fn)
	}
}

func (p *WorkerPool) run(fn task) {
	atomic.AddInt64(&p.metrics.Active, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.metrics.Panics, 1)
			atomic.AddInt64(&p.metrics.Failed, 1)
		} else {
			atomic.AddInt64(&p.metrics.Completed, 1)
		}
		atomic.AddInt64(&p.metrics.Active, -1)
	}()
	fn(p.baseCtx)
}

// Submit enqueues work without blocking. A full queue or a shut-down pool
// rejects the submission.
func (p *WorkerPool) Submit(fn func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return schema.NewError(schema.ErrCodeQueueFull, "worker pool is shut down")
	}

	select {
	case p.queue <- fn:
		return nil
	default:
		atomic.AddInt64(&p.metrics.Rejected, 1)
		return schema.NewError(schema.ErrCodeQueueFull, "admission queue is full")
	}
}

// Shutdown stops accepting work, signals in-flight sessions to cancel, and
// waits for the workers to drain.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.stop()
	p.wg.Wait()
}

// Metrics returns a snapshot of the current pool metrics.
func (p *WorkerPool) Metrics() PoolMetrics {
	return PoolMetrics{
		Active:    atomic.LoadInt64(&p.metrics.Active),
		Completed: atomic.LoadInt64(&p.metrics.Completed),
		Failed:    atomic.LoadInt64(&p.metrics.Failed),
		Panics:    atomic.LoadInt64(&p.metrics.Panics),
		Rejected:  atomic.LoadInt64(&p.metrics.Rejected),
	}
}
