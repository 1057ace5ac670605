package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibbo_poll_cycles_total",
			Help: "Poll cycles by organization and outcome",
		},
		[]string{"org", "result"},
	)
	pollCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibbo_poll_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"org"},
	)
	feedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vibbo_feed_items",
			Help: "Items in the latest published snapshot",
		},
		[]string{"org"},
	)
)
