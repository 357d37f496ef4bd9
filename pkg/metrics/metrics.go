// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RouteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "debris_router_route_requests_total",
		Help: "Shortest-path requests by outcome",
	}, []string{"outcome"})
	RouteDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "debris_router_route_duration_ms",
		Help:    "Shortest-path query duration in milliseconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	SettledNodes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "debris_router_settled_nodes",
		Help:    "Nodes settled per shortest-path search",
		Buckets: prometheus.ExponentialBuckets(10, 4, 9),
	})
	GraphNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "debris_router_graph_nodes",
		Help: "Nodes in the published routing graph",
	})
	GraphEdges = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "debris_router_graph_edges",
		Help: "Edges in the published routing graph",
	})
	RemovedEdges = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "debris_router_removed_edges",
		Help: "Edges removed because they touch an obstacle",
	})
	Obstacles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "debris_router_obstacles",
		Help: "Valid obstacle polygons in use",
	})
	IngestErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "debris_router_ingest_errors_total",
		Help: "Input items skipped during ingestion",
	}, []string{"kind"})
	BuildDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "debris_router_build_duration_seconds",
		Help: "Time spent loading, building and pruning the graph",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "debris_router_cache_hits_total",
		Help: "Total redis route cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "debris_router_cache_misses_total",
		Help: "Total redis route cache misses",
	})
	CacheErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "debris_router_cache_errors_total",
		Help: "Total redis route cache failures",
	})
)

func init() {
	prometheus.MustRegister(RouteRequestsTotal)
	prometheus.MustRegister(RouteDurationMs)
	prometheus.MustRegister(SettledNodes)
	prometheus.MustRegister(GraphNodes)
	prometheus.MustRegister(GraphEdges)
	prometheus.MustRegister(RemovedEdges)
	prometheus.MustRegister(Obstacles)
	prometheus.MustRegister(IngestErrorsTotal)
	prometheus.MustRegister(BuildDurationSeconds)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheErrorsTotal)
}

// Handler serves the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }
