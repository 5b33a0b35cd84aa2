package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facematch",
		Name:      "search_duration_seconds",
		Help:      "Duration of similarity searches by candidate source",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"source"})

	SearchMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facematch",
		Name:      "search_matches",
		Help:      "Number of matches returned per search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
	})

	SearchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "search_errors_total",
		Help:      "Total number of rejected or failed searches by reason",
	}, []string{"reason"})

	FallbackScans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "fallback_scans_total",
		Help:      "Total number of searches served by exact linear scan",
	})

	IndexRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "index_rebuilds_total",
		Help:      "Total number of completed per-event index rebuilds",
	})

	RecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "match_record_failures_total",
		Help:      "Total number of best-effort match recordings that failed",
	})

	AggregateRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "aggregate_refreshes_total",
		Help:      "Total number of analytics snapshot refreshes by outcome",
	}, []string{"outcome"})

	EmbeddingsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facematch",
		Name:      "embeddings_ingested_total",
		Help:      "Total number of face embeddings accepted into the store",
	})
)
