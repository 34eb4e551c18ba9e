package analyzer

import (
	"testing"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

func TestGetServiceName(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]string
		want  string
	}{
		{
			name:  "uses service.name when present",
			attrs: map[string]string{"service.name": "checkout"},
			want:  "checkout",
		},
		{
			name:  "falls back to host.name",
			attrs: map[string]string{"host.name": "host-1"},
			want:  "host-1",
		},
		{
			name:  "defaults to unknown when both empty",
			attrs: map[string]string{"service.name": ""},
			want:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getServiceName(tt.attrs); got != tt.want {
				t.Fatalf("getServiceName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttributeValueToString(t *testing.T) {
	tests := []struct {
		value *commonpb.AnyValue
		want  string
	}{
		{nil, ""},
		{&commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "GET"}}, "GET"},
		{&commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: 404}}, "404"},
		{&commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: 0.25}}, "0.25"},
		{&commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: true}}, "true"},
	}

	for _, tt := range tests {
		if got := attributeValueToString(tt.value); got != tt.want {
			t.Errorf("attributeValueToString(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
