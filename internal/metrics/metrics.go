package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_fetches_total",
			Help: "Total number of fetch-and-map invocations by outcome",
		},
		[]string{"provider", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_fetch_duration_seconds",
			Help:    "Duration of a fetch-and-map invocation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PropertiesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_properties_skipped_total",
			Help: "Total number of property definitions skipped during mapping",
		},
		[]string{"provider", "reason"},
	)

	ActivityRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_activity_runs_total",
			Help: "Total number of scheduled activity runs by outcome",
		},
		[]string{"provider", "outcome"},
	)
)
