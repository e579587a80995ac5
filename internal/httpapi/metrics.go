package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_service_requests_total",
		Help: "HTTP requests by method and status class.",
	}, []string{"method", "class"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_service_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})

	ticketsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_service_tickets_booked_total",
		Help: "Tickets booked since start.",
	})

	ticketsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_service_tickets_completed_total",
		Help: "Tickets completed since start.",
	})
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
