package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	DispatchErrors   *prometheus.CounterVec

	// Remote metrics
	RemoteDuration   *prometheus.HistogramVec
	LoopbackRejected prometheus.Counter

	// Registry metrics
	RegistryServices prometheus.Gauge

	// System metrics
	UptimeGauge prometheus.Gauge
	startTime   time.Time

	snapshot MetricsSnapshot
	mu       sync.RWMutex
	stopOnce sync.Once
	done     chan struct{}
}

// MetricsSnapshot holds current values for the JSON health endpoint
type MetricsSnapshot struct {
	TotalRequests    int64 `json:"total_requests"`
	TotalErrors      int64 `json:"total_errors"`
	TotalDispatches  int64 `json:"total_dispatches"`
	FailedDispatches int64 `json:"failed_dispatches"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		done:      make(chan struct{}),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicehub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicehub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicehub_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicehub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicehub_dispatch_total",
				Help: "Total number of service dispatches",
			},
			[]string{"backend", "status"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicehub_dispatch_duration_seconds",
				Help:    "Service dispatch duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend"},
		),
		DispatchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicehub_dispatch_errors_total",
				Help: "Total number of failed dispatches by failure kind",
			},
			[]string{"backend", "kind"},
		),

		RemoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicehub_remote_duration_seconds",
				Help:    "Remote endpoint round trip in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"host", "status"},
		),
		LoopbackRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "servicehub_remote_loopback_rejected_total",
				Help: "Remote invocations refused because they target this process",
			},
		),

		RegistryServices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "servicehub_registry_services",
				Help: "Number of services in the registry",
			},
		),

		UptimeGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "servicehub_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// Handler serves this collector's registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Close stops the uptime updater
func (m *Metrics) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.UptimeGauge.Set(time.Since(m.startTime).Seconds())
		case <-m.done:
			return
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDispatch records one dispatch outcome
func (m *Metrics) RecordDispatch(backend, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(backend, status).Inc()
	m.DispatchDuration.WithLabelValues(backend).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalDispatches++
	if status != StatusSuccess {
		m.snapshot.FailedDispatches++
	}
	m.mu.Unlock()
}

// RecordDispatchError records the failure kind of a dispatch
func (m *Metrics) RecordDispatchError(backend, kind string) {
	if m == nil {
		return
	}
	m.DispatchErrors.WithLabelValues(backend, kind).Inc()
}

// RecordRemoteCall records a remote round trip
func (m *Metrics) RecordRemoteCall(host, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteDuration.WithLabelValues(host, status).Observe(duration.Seconds())
}

// IncLoopbackRejected counts a refused self-invocation
func (m *Metrics) IncLoopbackRejected() {
	if m == nil {
		return
	}
	m.LoopbackRejected.Inc()
}

// SetRegistryServices sets the number of registered services
func (m *Metrics) SetRegistryServices(count int) {
	if m == nil {
		return
	}
	m.RegistryServices.Set(float64(count))
}

// Snapshot returns the current JSON-friendly counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Uptime returns the time since the collector was created
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}
