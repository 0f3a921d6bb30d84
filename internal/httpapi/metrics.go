package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotiku_http_requests_total",
		Help: "Handled HTTP requests by method and status code.",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rotiku_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})

	ordersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotiku_orders_created_total",
		Help: "Orders created, by initial status.",
	}, []string{"status"})

	orderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotiku_order_transitions_total",
		Help: "Order state machine transitions, by event and outcome.",
	}, []string{"event", "outcome"})

	insufficientStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotiku_insufficient_stock_total",
		Help: "Requests rejected because ingredient stock could not cover a requirement batch.",
	})
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response code for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
