package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_campaign_decisions_total",
			Help: "Eligibility decisions by outcome",
		},
		[]string{"outcome"},
	)

	sendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_campaign_sends_total",
			Help: "Per recipient deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auto_campaign_run_duration_seconds",
			Help:    "Wall time of a fired run from insert to final counts",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"channel", "status"},
	)

	configErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_campaign_config_errors_total",
			Help: "Runs refused because of campaign configuration",
		},
		[]string{"code"},
	)
)
