// Package metrics declares the Prometheus collectors exported by famfin.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "famfin_ws_connections_active",
			Help: "Number of live WebSocket connections",
		},
	)

	UserRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "famfin_ws_user_rooms",
			Help: "Number of users with at least one live connection",
		},
	)

	FamilyRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "famfin_ws_family_rooms",
			Help: "Number of family rooms with at least one member connection",
		},
	)

	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famfin_ws_events_delivered_total",
			Help: "Events queued to connections, by event kind",
		},
		[]string{"event"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famfin_ws_events_dropped_total",
			Help: "Events dropped because a connection's send buffer was full, by event kind",
		},
		[]string{"event"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famfin_http_requests_total",
			Help: "HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famfin_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(UserRooms)
	prometheus.MustRegister(FamilyRooms)
	prometheus.MustRegister(EventsDelivered)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(seconds)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
