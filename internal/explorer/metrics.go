package explorer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tableQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: "cardinality_explorer",
		Name:      "table_queries_total",
		Help:      "Number of statistics tables built, by kind.",
	}, []string{"kind"})

	tableQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Namespace: "cardinality_explorer",
		Name:      "table_query_duration_seconds",
		Help:      "Time spent building a statistics table, by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	snapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: "cardinality_explorer",
		Name:      "snapshots_total",
		Help:      "Number of snapshots stored, by trigger.",
	}, []string{"trigger"})
)
