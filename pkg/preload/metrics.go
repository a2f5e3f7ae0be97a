package preload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	preloadTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scripture_preload_tasks_total",
		Help: "Total number of preload tasks by page and outcome",
	}, []string{"page", "outcome"})

	preloadSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scripture_preload_skipped_total",
		Help: "Total number of preload requests dropped by a guard",
	}, []string{"reason"})
)

const (
	outcomeLoaded    = "loaded"
	outcomeCached    = "cached"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
	outcomeHalted    = "halted"
)

const (
	reasonClosed     = "closed"
	reasonCycle      = "cycle_running"
	reasonCacheFull  = "cache_full"
	reasonTooSoon    = "too_soon"
	reasonInFlight   = "in_flight"
	reasonBeyondBook = "beyond_book"
	reasonNoContext  = "no_context"
	reasonDisabled   = "disabled"
	reasonCached     = "cached"
)
