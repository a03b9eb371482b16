// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces that background jobs use to report their progress. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as Prometheus metrics or the job-progress table.
package progress
