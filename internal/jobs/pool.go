package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/strataisp/console/internal/metrics"
)

// Pool fans queue work out to a fixed number of workers.
type Pool struct {
	queue   Queue
	workers int
	logger  *zap.Logger
}

// NewPool sizes a worker pool over the queue.
func NewPool(queue Queue, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: queue, workers: workers, logger: logger}
}

// Run starts the workers and blocks until the context finishes and every
// worker has returned. A task already running when the context ends gets
// to observe the cancellation through its own ctx.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker", id))
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		p.runTask(ctx, logger, task)
	}
}

// runTask executes one task with panic recovery so a broken task never
// takes down its worker.
func (p *Pool) runTask(ctx context.Context, logger *zap.Logger, task Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObserveJob(task.Kind(), "panic")
			logger.Error("task panicked",
				zap.String("kind", task.Kind()),
				zap.String("job_id", task.JobID().String()),
				zap.Any("panic", rec))
		}
	}()

	logger.Debug("task started",
		zap.String("kind", task.Kind()),
		zap.String("job_id", task.JobID().String()))

	if err := task.Run(ctx); err != nil {
		metrics.ObserveJob(task.Kind(), "failed")
		logger.Error("task failed",
			zap.String("kind", task.Kind()),
			zap.String("job_id", task.JobID().String()),
			zap.Error(fmt.Errorf("run task: %w", err)))
		return
	}
	metrics.ObserveJob(task.Kind(), "done")
}
