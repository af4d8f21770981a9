package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the dispatch service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PathSearches counts single path searches by outcome (found, not_found, invalid).
	PathSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_path_searches_total", Help: "Path searches by outcome."},
		[]string{"outcome"},
	)
	// SearchExpansions tracks cells expanded per assignment round or single search.
	SearchExpansions = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "fleet_search_expansions", Help: "Cells expanded per search batch.", Buckets: prometheus.ExponentialBuckets(16, 4, 8)},
	)
	// AssignRounds counts assignment rounds by policy.
	AssignRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_assign_rounds_total", Help: "Assignment rounds by policy."},
		[]string{"policy"},
	)
	AssignDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "fleet_assign_duration_seconds", Help: "Assignment round duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"policy"},
	)
	Assignments = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fleet_assignments_total", Help: "Robot/order pairings made."},
	)
	PendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fleet_pending_orders", Help: "Orders waiting for a robot."},
	)
	Robots = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fleet_robots", Help: "Robots in the fleet."},
	)

	// WebhookDeliveries counts webhook delivery attempts by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(PathSearches, SearchExpansions)
		Registry.MustRegister(AssignRounds, AssignDuration, Assignments, PendingOrders, Robots)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
