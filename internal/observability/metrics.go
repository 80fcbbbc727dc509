package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "rides_created_total", Help: "Rides created"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "rides_completed_total", Help: "Rides completed"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "rides_cancelled_total", Help: "Rides cancelled"})
	OffersSent     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "offers_sent_total", Help: "Ride offers fanned out to captains"})
	QuoteLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_hail", Name: "quote_latency_seconds", Help: "Fare quote latency"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "notifications_dropped_total", Help: "Notifications dropped because the recipient was offline"})
	ConnectionsActive    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_hail", Name: "ws_connections_active", Help: "Registered realtime connections"})
	LocationReports      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "location_reports_total", Help: "Driver location reports accepted"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hail", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_hail",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
