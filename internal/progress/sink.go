package progress

import "context"

// Sink consumes batches of progress events. Implementations must honor
// ctx deadlines and tolerate repeated Consume/Close cycles; the hub calls
// them from a single goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it, so job runners
// stay agnostic about buffering and persistence.
type Emitter interface {
	Emit(evt Event)
}
