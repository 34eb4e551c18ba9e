package models

import (
	"sort"

	"github.com/zeebo/xxh3"
)

// MetricNameLabel is the pseudo-label holding the metric name.
const MetricNameLabel = "__name__"

// SeriesFingerprint hashes a metric name and its label set. Labels are
// sorted by key so that map iteration order does not matter.
func SeriesFingerprint(metric string, labels map[string]string) uint64 {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxh3.New()
	_, _ = h.WriteString(metric)
	for _, k := range keys {
		_, _ = h.WriteString("\xff")
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("\xfe")
		_, _ = h.WriteString(labels[k])
	}
	return h.Sum64()
}

// PairName renders a label=value pair the way the pairs table names it.
func PairName(label, value string) string {
	return label + "=" + value
}
