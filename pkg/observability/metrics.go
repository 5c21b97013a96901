package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Connection manager metrics
	Handshakes        *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram
	GateRejections    *prometheus.CounterVec

	// Route modules that failed to load, by module name
	ModuleLoadFailures *prometheus.CounterVec

	// Process memory as sampled by the memory monitor
	MemoryBytes *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry, so tests and
// multiple handlers in one process do not collide on registration.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_handshakes_total",
				Help:      "Database handshakes by result (success, failure, suppressed)",
			},
			[]string{"result"},
		),
		HandshakeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_handshake_duration_seconds",
				Help:      "Database handshake duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		GateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_gate_rejections_total",
				Help:      "API requests rejected because no database connection was available",
			},
			[]string{"reason"},
		),
		ModuleLoadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_module_load_failures_total",
				Help:      "Route modules replaced by a fallback handler at startup",
			},
			[]string{"module"},
		),
		MemoryBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_bytes",
				Help:      "Process memory in bytes by kind (rss, heap)",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Handshakes,
		c.HandshakeDuration,
		c.GateRejections,
		c.ModuleLoadFailures,
		c.MemoryBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	return c
}

// RegisterStateGauge exports the connection state reported by fn.
func (c *Collector) RegisterStateGauge(namespace string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_state",
			Help:      "Database connection state: 0 disconnected, 1 connected, 2 connecting, 3 disconnecting",
		},
		fn,
	))
}

// ObserveHandshake records a handshake outcome.
func (c *Collector) ObserveHandshake(result string, duration time.Duration) {
	c.Handshakes.WithLabelValues(result).Inc()
	if result != "suppressed" {
		c.HandshakeDuration.Observe(duration.Seconds())
	}
}

// ObserveGateRejection counts a request turned away by the database gate.
func (c *Collector) ObserveGateRejection(reason string) {
	c.GateRejections.WithLabelValues(reason).Inc()
}

// ObserveModuleFailure counts a route module that failed to load.
func (c *Collector) ObserveModuleFailure(module string) {
	c.ModuleLoadFailures.WithLabelValues(module).Inc()
}

// ObserveMemory records a memory sample.
func (c *Collector) ObserveMemory(rss, heap uint64) {
	c.MemoryBytes.WithLabelValues("rss").Set(float64(rss))
	c.MemoryBytes.WithLabelValues("heap").Set(float64(heap))
}

// ObserveRequest records a finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
