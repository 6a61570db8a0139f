package ops

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Microck/bansho/internal/domain/proxy"
)

// NewRegistry returns a private metrics registry preloaded with the
// standard Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Metrics holds all Prometheus metrics for the gateway.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RateLimitedTotal   *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter
	UpstreamErrors     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bansho",
				Name:      "requests_total",
				Help:      "Total number of guarded MCP requests processed",
			},
			[]string{"method", "status"}, // method=tools/call, status=200/403/...
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bansho",
				Name:      "request_duration_seconds",
				Help:      "Guarded request duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"method"},
		),
		RateLimitedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bansho",
				Name:      "rate_limited_total",
				Help:      "Total requests denied by the rate limiter",
			},
			[]string{"scope"}, // scope=per_api_key/per_tool
		),
		AuditWriteFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "bansho",
				Name:      "audit_write_failures_total",
				Help:      "Total audit events that could not be persisted",
			},
		),
		UpstreamErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "bansho",
				Name:      "upstream_errors_total",
				Help:      "Total failed forwards to the upstream server",
			},
		),
	}
}

// ObserveRequest records one finished guarded request.
func (m *Metrics) ObserveRequest(method string, statusCode int, latency time.Duration) {
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(latency.Seconds())
}

// RateLimited records a rate limiter denial for the given scope.
func (m *Metrics) RateLimited(scope string) {
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// UpstreamError records a failed upstream forward.
func (m *Metrics) UpstreamError() {
	m.UpstreamErrors.Inc()
}

// AuditWriteFailure records an audit event that could not be stored.
func (m *Metrics) AuditWriteFailure() {
	m.AuditWriteFailures.Inc()
}

// Compile-time check that Metrics implements the pipeline recorder.
var _ proxy.Recorder = (*Metrics)(nil)
