// Package analyzer turns OTLP metric exports into series observations.
package analyzer

import (
	"errors"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

// ErrNilRequest is returned when Analyze is given no request.
var ErrNilRequest = errors.New("request cannot be nil")

// Observation is one data point reduced to its series identity.
type Observation struct {
	Metric string
	Labels map[string]string
}

// Observer receives observations. *collector.Collector implements it.
type Observer interface {
	Observe(metric string, labels map[string]string)
}

// MetricsAnalyzer extracts series observations from OTLP metrics.
type MetricsAnalyzer struct{}

// NewMetricsAnalyzer creates a new metrics analyzer.
func NewMetricsAnalyzer() *MetricsAnalyzer {
	return &MetricsAnalyzer{}
}

// Analyze returns one observation per data point in req.
func (a *MetricsAnalyzer) Analyze(req *colmetricspb.ExportMetricsServiceRequest) ([]Observation, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	var results []Observation
	for _, rm := range req.GetResourceMetrics() {
		resourceAttrs := extractAttributes(rm.GetResource().GetAttributes())
		base := map[string]string{jobLabel: getServiceName(resourceAttrs)}
		if instance := getInstance(resourceAttrs); instance != "" {
			base[instanceLabel] = instance
		}

		for _, sm := range rm.GetScopeMetrics() {
			for _, metric := range sm.GetMetrics() {
				for _, attrs := range dataPointAttributes(metric) {
					results = append(results, Observation{
						Metric: metric.GetName(),
						Labels: mergeLabels(base, attrs),
					})
				}
			}
		}
	}

	return results, nil
}

// AnalyzeInto feeds every observation in req to obs and returns how many
// data points were seen.
func (a *MetricsAnalyzer) AnalyzeInto(req *colmetricspb.ExportMetricsServiceRequest, obs Observer) (int, error) {
	observations, err := a.Analyze(req)
	if err != nil {
		return 0, err
	}
	for _, o := range observations {
		obs.Observe(o.Metric, o.Labels)
	}
	return len(observations), nil
}

// dataPointAttributes returns the attribute sets of every data point.
func dataPointAttributes(metric *metricspb.Metric) [][]*commonpb.KeyValue {
	var out [][]*commonpb.KeyValue
	switch data := metric.Data.(type) {
	case *metricspb.Metric_Gauge:
		for _, dp := range data.Gauge.GetDataPoints() {
			out = append(out, dp.GetAttributes())
		}
	case *metricspb.Metric_Sum:
		for _, dp := range data.Sum.GetDataPoints() {
			out = append(out, dp.GetAttributes())
		}
	case *metricspb.Metric_Histogram:
		for _, dp := range data.Histogram.GetDataPoints() {
			out = append(out, dp.GetAttributes())
		}
	case *metricspb.Metric_ExponentialHistogram:
		for _, dp := range data.ExponentialHistogram.GetDataPoints() {
			out = append(out, dp.GetAttributes())
		}
	case *metricspb.Metric_Summary:
		for _, dp := range data.Summary.GetDataPoints() {
			out = append(out, dp.GetAttributes())
		}
	}
	return out
}

// mergeLabels overlays data point attributes on the resource labels.
func mergeLabels(base map[string]string, attrs []*commonpb.KeyValue) map[string]string {
	labels := make(map[string]string, len(base)+len(attrs))
	for k, v := range base {
		labels[k] = v
	}
	for k, v := range extractAttributes(attrs) {
		labels[k] = v
	}
	return labels
}
