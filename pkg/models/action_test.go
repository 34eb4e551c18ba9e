package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionFor(t *testing.T) {
	assert.Equal(t, "match:up", ActionFor(KindMetrics, "up"))
	assert.Equal(t, "pair:job=api", ActionFor(KindPairs, "job=api"))
	assert.Equal(t, "focus:job", ActionFor(KindLabels, "job"))
	assert.Equal(t, "focus:job", ActionFor(KindLabelValues, "job"))
}

func TestWithSeverity(t *testing.T) {
	assert.Equal(t, "match:up", WithSeverity("match:up", SeverityInfo))
	assert.Equal(t, "match:up", WithSeverity("match:up", ""))
	assert.Equal(t, "match:up!critical", WithSeverity("match:up", SeverityCritical))
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in       string
		key      string
		severity string
	}{
		{"match:up", "match:up", ""},
		{"focus:job!warning", "focus:job", "warning"},
		{"pair:msg=hi!critical", "pair:msg=hi", "critical"},
		{"pair:msg=hi!", "pair:msg=hi!", ""},
		{"pair:msg=wow!ok", "pair:msg=wow!ok", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, sev := ParseAction(tt.in)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.severity, sev)
		})
	}
}
