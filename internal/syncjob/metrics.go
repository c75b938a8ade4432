package syncjob

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogsync_runs_total",
		Help: "Completed sync runs by final status",
	}, []string{"status"})

	appointmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogsync_appointments_total",
		Help: "Appointments processed by outcome (created, updated, linked, failed)",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dogsync_run_duration_seconds",
		Help:    "Wall-clock duration of sync runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogsync_retries_total",
		Help: "Site requests retried after a temporary failure, by operation",
	}, []string{"operation"})

	runInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dogsync_run_in_progress",
		Help: "1 while a sync run is executing",
	})
)
