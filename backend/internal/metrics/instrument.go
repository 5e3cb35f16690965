package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	computeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chaingraph_metric_compute_seconds",
		Help:    "Time spent computing graph metrics",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"metric"})

	computeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaingraph_metric_errors_total",
		Help: "Graph metric computations that returned an error",
	}, []string{"metric"})
)
