// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/harvest"
	"github.com/JakeFAU/frisbee/internal/queue/memory"
	"github.com/JakeFAU/frisbee/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers. It implements harvest.Pool.
type Dispatcher struct {
	queue   harvest.Queue
	workers []*worker.Worker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Dispatcher.
func New(queue harvest.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// PoolConfig sizes a pool built by NewPool.
type PoolConfig struct {
	Workers    int
	QueueDepth int
}

// NewPool builds a Dispatcher over an in-memory queue with cfg.Workers workers.
func NewPool(cfg PoolConfig, loader harvest.Loader, clock harvest.Clock, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.Workers
	if size <= 0 {
		size = 1
	}
	queue := memory.NewQueue(cfg.QueueDepth)
	workers := make([]*worker.Worker, 0, size)
	for i := range size {
		workers = append(workers, worker.New(i+1, queue, loader, clock, logger.Named("worker")))
	}
	return New(queue, workers)
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Start runs the pool in the background until Stop is called or ctx ends.
// Calling Start on a running pool is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	go func() {
		defer close(done)
		d.Run(runCtx)
	}()
}

// Stop cancels a pool started with Start and waits for its workers to return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Submit proxies to the underlying queue.
func (d *Dispatcher) Submit(ctx context.Context, task harvest.Task) error {
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
