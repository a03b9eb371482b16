// Package jobs runs background work for campaigns and imports: a bounded
// in-memory queue fed by the API layer and a worker pool that drains it.
package jobs

import (
	"context"

	"github.com/google/uuid"
)

// Task is one unit of background work. Implementations live with the
// feature that owns them (campaign batches, import batches) and report
// their own progress through the hub.
type Task interface {
	// JobID identifies the logical job the task belongs to.
	JobID() uuid.UUID
	// Kind labels the task for logs and metrics ("campaign", "import").
	Kind() string
	// Run executes the task. Run must honor ctx cancellation; a
	// cancelled run counts as failed.
	Run(ctx context.Context) error
}

// Queue hands tasks from producers to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Close()
}
