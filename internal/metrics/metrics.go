// Package metrics exposes Prometheus collectors for the console service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	probeSessionsTotal         *prometheus.CounterVec
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	campaignMessagesTotal      *prometheus.CounterVec
	importRowsTotal            *prometheus.CounterVec
	cacheRequestsTotal         *prometheus.CounterVec
	gatewayThrottleSeconds     *prometheus.HistogramVec
	pdfRenderSeconds           prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		probeSessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_probe_sessions_total",
				Help: "Total number of probe stream sessions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_jobs_total",
				Help: "Total number of background jobs processed, labeled by type and status.",
			},
			[]string{"type", "status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		campaignMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_campaign_messages_total",
				Help: "Total campaign messages handed to gateways, labeled by channel and status.",
			},
			[]string{"channel", "status"},
		)

		importRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_import_rows_total",
				Help: "Total subscriber import rows processed, labeled by status.",
			},
			[]string{"status"},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_cache_requests_total",
				Help: "Total cache lookups, labeled by cache name and result.",
			},
			[]string{"cache", "result"},
		)

		gatewayThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_gateway_throttle_seconds",
				Help:    "Histogram of time spent waiting on outbound gateway rate limits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"gateway"},
		)

		pdfRenderSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "console_pdf_render_seconds",
				Help:    "Histogram of invoice PDF render durations.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveProbeSession increments the probe session counter for the given
// outcome.
func ObserveProbeSession(outcome string) {
	probeSessionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveJob increments the job counter for the given type and status.
func ObserveJob(jobType, status string) {
	jobsTotal.WithLabelValues(jobType, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveCampaignMessage increments the campaign message counter.
func ObserveCampaignMessage(channel, status string) {
	campaignMessagesTotal.WithLabelValues(channel, status).Inc()
}

// ObserveImportRows adds n rows with the given outcome to the import row
// counter.
func ObserveImportRows(status string, n int) {
	importRowsTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveCacheRequest increments the cache lookup counter.
func ObserveCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

// ObserveGatewayThrottle records time spent waiting on a gateway limiter.
func ObserveGatewayThrottle(gateway string, duration time.Duration) {
	gatewayThrottleSeconds.WithLabelValues(gateway).Observe(duration.Seconds())
}

// ObservePDFRender records the duration of one invoice PDF render.
func ObservePDFRender(duration time.Duration) {
	pdfRenderSeconds.Observe(duration.Seconds())
}
