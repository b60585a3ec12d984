package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks gateway metrics for Prometheus export.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   prometheus.Counter
	corsRejections   prometheus.Counter
}

// NewCollector creates a collector with its own registry so test
// instances never collide on the global default.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubegate_requests_total",
			Help: "Requests handled, by routing decision and response status.",
		}, []string{"decision", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kubegate_upstream_request_duration_seconds",
			Help:    "Upstream round-trip latency distribution in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kubegate_upstream_errors_total",
			Help: "Upstream requests that failed to complete.",
		}),
		corsRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kubegate_cors_rejections_total",
			Help: "Requests rejected by the origin policy.",
		}),
	}
	reg.MustRegister(
		c.requestsTotal,
		c.upstreamDuration,
		c.upstreamErrors,
		c.corsRejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(decision string, status int) {
	c.requestsTotal.WithLabelValues(decision, strconv.Itoa(status)).Inc()
}

// RecordUpstream records an upstream round trip.
func (c *Collector) RecordUpstream(method string, duration time.Duration) {
	c.upstreamDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordUpstreamError records a failed upstream round trip.
func (c *Collector) RecordUpstreamError() {
	c.upstreamErrors.Inc()
}

// RecordCORSRejection records an origin-policy rejection.
func (c *Collector) RecordCORSRejection() {
	c.corsRejections.Inc()
}

// Handler returns the /metrics HTTP handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
