package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets covers LLM completion latencies, which run much longer
// than typical HTTP handlers.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Collector owns every Prometheus metric in the gateway and the registry
// they live in. A nil *Collector is valid and records nothing, so callers
// never need to guard on metrics being enabled.
type Collector struct {
	registry *prometheus.Registry

	providerHealth   *prometheus.GaugeVec
	providerLatency  *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec
	providerRequests *prometheus.CounterVec

	fallbacks            *prometheus.CounterVec
	unrecognizedProvider *prometheus.CounterVec

	contextLoads     *prometheus.CounterVec
	contextCoalesced prometheus.Counter

	validationAttempts *prometheus.CounterVec

	streamsActive prometheus.Gauge
}

// NewCollector creates a collector with its own registry. namespace prefixes
// every metric name.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,

		providerHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_available",
				Help:      "Provider availability (1=available, 0=unavailable)",
			},
			[]string{"provider"},
		),

		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Upstream completion latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"provider"},
		),

		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Upstream errors by provider and error kind",
			},
			[]string{"provider", "kind"},
		),

		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Completed upstream requests by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallbacks_total",
				Help:      "Fallback attempts by original provider, fallback provider, and outcome",
			},
			[]string{"from", "to", "outcome"},
		),

		unrecognizedProvider: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unrecognized_provider_total",
				Help:      "Requests naming an unknown provider key, routed to the default aggregator",
			},
			[]string{"key"},
		),

		contextLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_loads_total",
				Help:      "Documentation context loads by source (cache, remote, local, sentinel)",
			},
			[]string{"source"},
		),

		contextCoalesced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_loads_coalesced_total",
				Help:      "Context loads that piggybacked on an in-flight fetch",
			},
		),

		validationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_validation_attempts_total",
				Help:      "Credential validation attempts by outcome (ok, failed, rate_limited)",
			},
			[]string{"outcome"},
		),

		streamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "streams_active",
				Help:      "Streaming responses currently in flight",
			},
		),
	}

	registry.MustRegister(
		c.providerHealth,
		c.providerLatency,
		c.providerErrors,
		c.providerRequests,
		c.fallbacks,
		c.unrecognizedProvider,
		c.contextLoads,
		c.contextCoalesced,
		c.validationAttempts,
		c.streamsActive,
	)

	return c
}

// Handler returns the scrape endpoint handler.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// SetProviderAvailable records a provider availability flip.
func (c *Collector) SetProviderAvailable(provider string, available bool) {
	if c == nil {
		return
	}
	value := 0.0
	if available {
		value = 1.0
	}
	c.providerHealth.WithLabelValues(provider).Set(value)
}

// RecordRequest records one completed upstream request.
func (c *Collector) RecordRequest(provider string, ok bool, latency time.Duration) {
	if c == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "ok"
		c.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
	c.providerRequests.WithLabelValues(provider, outcome).Inc()
}

// RecordProviderError records an upstream error by classified kind.
func (c *Collector) RecordProviderError(provider, kind string) {
	if c == nil {
		return
	}
	c.providerErrors.WithLabelValues(provider, kind).Inc()
}

// RecordFallback records a fallback attempt and its outcome.
func (c *Collector) RecordFallback(from, to string, ok bool) {
	if c == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	c.fallbacks.WithLabelValues(from, to, outcome).Inc()
}

// RecordUnrecognizedProvider records a request for an unknown provider key.
func (c *Collector) RecordUnrecognizedProvider(key string) {
	if c == nil {
		return
	}
	c.unrecognizedProvider.WithLabelValues(key).Inc()
}

// RecordContextLoad records a context load by source.
func (c *Collector) RecordContextLoad(source string) {
	if c == nil {
		return
	}
	c.contextLoads.WithLabelValues(source).Inc()
}

// RecordContextCoalesced records a load that joined an in-flight fetch.
func (c *Collector) RecordContextCoalesced() {
	if c == nil {
		return
	}
	c.contextCoalesced.Inc()
}

// RecordValidation records a credential validation attempt outcome.
func (c *Collector) RecordValidation(outcome string) {
	if c == nil {
		return
	}
	c.validationAttempts.WithLabelValues(outcome).Inc()
}

// StreamStarted marks a streaming response as in flight.
func (c *Collector) StreamStarted() {
	if c == nil {
		return
	}
	c.streamsActive.Inc()
}

// StreamFinished marks a streaming response as done.
func (c *Collector) StreamFinished() {
	if c == nil {
		return
	}
	c.streamsActive.Dec()
}
