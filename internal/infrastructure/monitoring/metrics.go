package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestSize      *prometheus.HistogramVec
	ResponseSize     *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec
	ServiceErrors   *prometheus.CounterVec

	// Trace export metrics
	SpansEnqueued  prometheus.Counter
	SpansDropped   *prometheus.CounterVec
	SpansExported  prometheus.Counter
	ExportBatches  *prometheus.CounterVec
	ExportDuration prometheus.Histogram
	QueueLength    prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	TotalDuration  float64 `json:"-"`
	RequestCount   int64   `json:"-"`
	SpansExported  int64   `json:"spans_exported"`
	SpansDropped   int64   `json:"spans_dropped"`
	FailedBatches  int64   `json:"failed_batches"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	AvgDurationSec float64 `json:"avg_request_seconds"`
}

// Drop reasons for SpansDropped
const (
	DropQueueFull    = "queue_full"
	DropShutdown     = "shutdown"
	DropExportFailed = "export_failed"
)

// NewMetrics creates a new metrics collector registered with reg. A nil
// registerer means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_http_requests_in_flight",
				Help: "Number of requests with an open server span",
			},
		),

		// Service metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_service_calls_total",
				Help: "Total number of downstream service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_service_duration_seconds",
				Help:    "Downstream service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),
		ServiceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_service_errors_total",
				Help: "Total number of downstream service errors",
			},
			[]string{"service", "method", "error_type"},
		),

		// Trace export metrics
		SpansEnqueued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_trace_spans_enqueued_total",
				Help: "Total number of ended spans accepted by the export queue",
			},
		),
		SpansDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_trace_spans_dropped_total",
				Help: "Total number of spans dropped before reaching the collector",
			},
			[]string{"reason"},
		),
		SpansExported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_trace_spans_exported_total",
				Help: "Total number of spans delivered to the collector",
			},
		),
		ExportBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_trace_export_batches_total",
				Help: "Total number of export batches by result",
			},
			[]string{"result"},
		),
		ExportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backend_trace_export_duration_seconds",
				Help:    "Duration of one batch export in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		QueueLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_trace_queue_length",
				Help: "Number of ended spans waiting for export",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "backend_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records a finished request
func (m *Metrics) RecordHTTPRequest(r HTTPRequest) {
	status := statusLabel(r.Status)
	m.RequestsTotal.WithLabelValues(r.Method, r.Route, status).Inc()

	latency := m.RequestDuration.WithLabelValues(r.Method, r.Route)
	if eo, ok := latency.(prometheus.ExemplarObserver); ok && r.TraceID != "" {
		eo.ObserveWithExemplar(r.Duration.Seconds(), prometheus.Labels{"trace_id": r.TraceID})
	} else {
		latency.Observe(r.Duration.Seconds())
	}
	m.RequestSize.WithLabelValues(r.Method, r.Route).Observe(float64(r.RequestSize))
	m.ResponseSize.WithLabelValues(r.Method, r.Route).Observe(float64(r.ResponseSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += r.Duration.Seconds()
	m.snapshot.RequestCount++
	if r.Status >= 400 {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordServiceError records a service error
func (m *Metrics) RecordServiceError(service, method, errorType string) {
	m.ServiceErrors.WithLabelValues(service, method, errorType).Inc()
}

// RequestStarted marks a request span as open
func (m *Metrics) RequestStarted() { m.RequestsInFlight.Inc() }

// RequestFinished marks a request span as closed
func (m *Metrics) RequestFinished() { m.RequestsInFlight.Dec() }

// SpanEnqueued records a span accepted by the export queue
func (m *Metrics) SpanEnqueued(queueLen int) {
	m.SpansEnqueued.Inc()
	m.QueueLength.Set(float64(queueLen))
}

// SpansDroppedFor records spans dropped for the given reason
func (m *Metrics) SpansDroppedFor(reason string, n int) {
	if n <= 0 {
		return
	}
	m.SpansDropped.WithLabelValues(reason).Add(float64(n))
	m.mu.Lock()
	m.snapshot.SpansDropped += int64(n)
	m.mu.Unlock()
}

// BatchExported records the outcome of one export attempt
func (m *Metrics) BatchExported(size int, duration time.Duration, err error, queueLen int) {
	m.ExportDuration.Observe(duration.Seconds())
	m.QueueLength.Set(float64(queueLen))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.ExportBatches.WithLabelValues("failure").Inc()
		m.snapshot.FailedBatches++
		return
	}
	m.ExportBatches.WithLabelValues("success").Inc()
	m.SpansExported.Add(float64(size))
	m.snapshot.SpansExported += int64(size)
}

// Snapshot returns current values for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	if s.RequestCount > 0 {
		s.AvgDurationSec = s.TotalDuration / float64(s.RequestCount)
	}
	return s
}
