package analyzer

import (
	"strconv"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// Resource attributes promoted to series labels.
const (
	jobLabel      = "job"
	instanceLabel = "instance"
)

// getServiceName extracts service.name from resource attributes.
// Falls back to host.name, then "unknown".
func getServiceName(attrs map[string]string) string {
	if name, ok := attrs["service.name"]; ok && name != "" {
		return name
	}
	if name, ok := attrs["host.name"]; ok && name != "" {
		return name
	}
	return "unknown"
}

// getInstance extracts the instance identity from resource attributes.
func getInstance(attrs map[string]string) string {
	if id := attrs["service.instance.id"]; id != "" {
		return id
	}
	return attrs["host.name"]
}

// extractAttributes converts OTLP KeyValue attributes to a map.
func extractAttributes(attrs []*commonpb.KeyValue) map[string]string {
	result := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		result[attr.GetKey()] = attributeValueToString(attr.GetValue())
	}
	return result
}

// attributeValueToString converts an OTLP attribute value to string.
func attributeValueToString(value *commonpb.AnyValue) string {
	if value == nil {
		return ""
	}

	switch v := value.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(v.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(v.DoubleValue, 'g', -1, 64)
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(v.BoolValue)
	default:
		return value.String()
	}
}
