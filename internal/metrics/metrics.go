package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifield_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unifield_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// GatewayOpsTotal counts table operations against Postgres.
	GatewayOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifield_gateway_operations_total",
			Help: "Table operations by op, table and outcome.",
		},
		[]string{"op", "table", "status"},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unifield_realtime_subscribers",
			Help: "Open change feed subscriptions.",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifield_realtime_events_total",
			Help: "Change notifications received from Postgres, by table and kind.",
		},
		[]string{"table", "kind"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifield_cache_lookups_total",
			Help: "Table select cache lookups by result (hit, miss, or stale when a write raced the read).",
		},
		[]string{"result"},
	)
)
