package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/strataisp/console/internal/progress"
)

// PrometheusSink exports job progress metrics. It owns the collectors for
// jobs started/finished/running and per-kind row counters.
type PrometheusSink struct {
	jobsStarted  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	rowsDone     *prometheus.CounterVec
	rowsFailed   *prometheus.CounterVec

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_progress_jobs_started_total",
			Help: "Jobs that have reported a queued or running stage, by kind.",
		}, []string{"kind"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_progress_jobs_finished_total",
			Help: "Jobs that reached a terminal stage, by kind and stage.",
		}, []string{"kind", "stage"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_progress_jobs_running",
			Help: "Jobs currently between their first and terminal events.",
		}),
		rowsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_progress_rows_done_total",
			Help: "Rows processed successfully, by job kind.",
		}, []string{"kind"}),
		rowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_progress_rows_failed_total",
			Help: "Rows that failed, by job kind.",
		}, []string{"kind"}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsFinished,
		s.jobsRunning,
		s.rowsDone,
		s.rowsFailed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	kind := string(evt.Kind)
	if evt.RowsDone > 0 {
		s.rowsDone.WithLabelValues(kind).Add(float64(evt.RowsDone))
	}
	if evt.RowsFailed > 0 {
		s.rowsFailed.WithLabelValues(kind).Add(float64(evt.RowsFailed))
	}

	if evt.Stage.Terminal() {
		s.jobsFinished.WithLabelValues(kind, string(evt.Stage)).Inc()
		if s.tracker.complete(evt.JobID) {
			s.jobsRunning.Dec()
		}
		return
	}
	if s.tracker.start(evt.JobID) {
		s.jobsStarted.WithLabelValues(kind).Inc()
		s.jobsRunning.Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// jobTracker dedupes start/finish transitions so the running gauge stays
// balanced under repeated stage events.
type jobTracker struct {
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[uuid.UUID]struct{})}
}

func (t *jobTracker) start(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
