// README: Prometheus collectors for engine decisions, HTTP traffic, caches and events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions counts engine outcomes by engine and reason code.
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knx_engine_decisions_total",
			Help: "Engine decisions by engine and reason.",
		},
		[]string{"engine", "reason"},
	)

	// EnginePanics counts panics recovered at engine boundaries.
	EnginePanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knx_engine_panics_total",
			Help: "Panics recovered and converted into fail-closed results.",
		},
		[]string{"engine"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knx_http_requests_total",
			Help: "HTTP requests by route and status.",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knx_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	ZoneCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "knx_zone_cache_hits_total",
			Help: "Delivery zone cache hits.",
		},
	)

	ZoneCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "knx_zone_cache_misses_total",
			Help: "Delivery zone cache misses.",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knx_events_published_total",
			Help: "Domain events handed to the publisher by type and result.",
		},
		[]string{"type", "result"},
	)
)

// Decision records one engine outcome.
func Decision(engine, reason string) {
	Decisions.WithLabelValues(engine, reason).Inc()
}

// Panic records a recovered panic.
func Panic(engine string) {
	EnginePanics.WithLabelValues(engine).Inc()
}
