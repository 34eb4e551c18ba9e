package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// observationsTotal counts data points fed into any collector.
var observationsTotal = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
	Namespace: "cardinality_explorer",
	Name:      "observations_total",
	Help:      "Number of data points observed by the collector.",
})
