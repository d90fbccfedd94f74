// Package memory provides the in-process task queue feeding the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = harvest.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch        chan harvest.Task
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan harvest.Task, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task harvest.Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (harvest.Task, error) {
	select {
	case <-ctx.Done():
		return harvest.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return harvest.Task{}, ErrClosed
	case task := <-q.ch:
		return task, nil
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Blocked callers return ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
