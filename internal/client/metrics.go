package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaspardpetit/unraidlink/internal/metrics"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unraidlink_requests_total",
		Help: "Total number of synchronous operations by outcome",
	}, []string{"operation", "outcome"})
	requestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unraidlink_request_duration_seconds",
		Help:    "Duration of synchronous operations in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	metrics.Registry.MustRegister(requestsTotal, requestDuration)
}

func observeRequest(operation, outcome string, d time.Duration) {
	requestsTotal.WithLabelValues(operation, outcome).Inc()
	requestDuration.Observe(d.Seconds())
}
