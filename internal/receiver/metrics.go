package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// exportRequestsTotal counts OTLP export requests by transport and outcome.
var exportRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
	Namespace: "cardinality_explorer",
	Subsystem: "receiver",
	Name:      "export_requests_total",
	Help:      "Number of OTLP metric export requests.",
}, []string{"transport", "result"})
