package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scripture_queue_depth",
		Help: "Number of requests waiting in the global request queue by priority",
	}, []string{"priority"})

	queueWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scripture_queue_wait_seconds",
		Help:    "Time between enqueue and dispatch by priority",
		Buckets: []float64{0.1, 0.5, 1, 6, 12, 30, 60, 120},
	}, []string{"priority"})

	queueDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scripture_queue_dispatched_total",
		Help: "Total number of dispatched requests by outcome",
	}, []string{"outcome"})
)
