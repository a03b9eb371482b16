package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := sampleEvent(StageRunning)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageQueued))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers, even without sinks.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{
		BufferSize:     1,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	})
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			hub.Emit(sampleEvent(StageRunning))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked under backpressure")
	}
}

// TestHubDropsInvalidEvents ensures events failing validation never reach sinks.
func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	hub.Emit(Event{}) // missing everything
	evt := sampleEvent(StageRunning)
	evt.Kind = "mystery"
	hub.Emit(evt)

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

// TestHubCloseFlushesPending verifies Close drains buffered events before closing sinks.
func TestHubCloseFlushesPending(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     16,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	for i := 0; i < 5; i++ {
		hub.Emit(sampleEvent(StageRunning))
	}
	require.NoError(t, hub.Close(context.Background()))

	total := 0
	for _, batch := range sink.Batches() {
		total += len(batch)
	}
	require.Equal(t, 5, total)
	require.True(t, sink.Closed())
}

// TestHubCloseIdempotent makes sure repeated Close calls succeed.
func TestHubCloseIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

// TestHubSinkErrorDoesNotStopFlushes confirms a failing sink does not wedge the hub.
func TestHubSinkErrorDoesNotStopFlushes(t *testing.T) {
	t.Parallel()

	bad := newStubSink()
	bad.err = errors.New("sink down")
	good := newStubSink()
	hub := NewHub(Config{
		MaxBatchEvents: 1,
		MaxBatchWait:   10 * time.Millisecond,
	}, bad, good)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageRunning))
	hub.Emit(sampleEvent(StageDone))
	require.Eventually(t, func() bool {
		return len(good.Batches()) >= 2
	}, time.Second, 5*time.Millisecond)
}

func sampleEvent(stage Stage) Event {
	return Event{
		JobID:    uuid.New(),
		Kind:     KindCampaign,
		Stage:    stage,
		RowsDone: 1,
		At:       time.Now().UTC(),
	}
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
	err     error
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return s.err
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
