package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogsync_external_requests_total",
		Help: "Requests made to the external booking site by endpoint and status code",
	}, []string{"endpoint", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dogsync_external_request_duration_seconds",
		Help:    "Latency of requests to the external booking site",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"endpoint"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dogsync_external_breaker_state",
		Help: "Circuit breaker state for the external site (0=closed, 1=half-open, 2=open)",
	})
)
