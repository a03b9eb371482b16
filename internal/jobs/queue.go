package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed is returned by Dequeue once the queue has drained after
// Close.
var ErrQueueClosed = errors.New("job queue closed")

// MemoryQueue is a bounded in-memory queue with context-aware operations.
type MemoryQueue struct {
	ch      chan Task
	closeMu sync.Mutex
	closed  bool
}

// NewMemoryQueue constructs a queue holding at most capacity tasks.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{ch: make(chan Task, capacity)}
}

// Enqueue pushes a task or returns when the context ends first. A full
// queue blocks the producer, which is the intended backpressure.
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *MemoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown. Safe to call more
// than once.
func (q *MemoryQueue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
