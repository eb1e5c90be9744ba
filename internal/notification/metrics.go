package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_notifier_runs_total",
			Help: "Notification passes by outcome (completed, skipped, failed).",
		},
		[]string{"outcome"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expiry_notifier_run_duration_seconds",
			Help:    "Duration of completed notification passes.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
	candidatesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "expiry_notifier_candidates",
			Help: "Candidates per bucket in the last completed pass.",
		},
		[]string{"bucket"},
	)
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_notifier_dispatch_total",
			Help: "Send attempts by kind, channel and status.",
		},
		[]string{"kind", "channel", "status"},
	)
)
