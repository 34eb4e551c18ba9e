package models

import (
	"errors"
	"fmt"
)

// Growth severities attached to table rows.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ErrUnknownSeverity is returned for a severity outside info, warning and
// critical.
var ErrUnknownSeverity = errors.New("unknown severity")

// Growth thresholds.
const (
	warningRatio  = 2.0
	criticalRatio = 10.0

	// newEntryWarning is the count at which an entry absent from the
	// previous snapshot is flagged.
	newEntryWarning = 1000
)

var severityRank = map[string]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// ParseSeverity validates a severity string.
func ParseSeverity(s string) (string, error) {
	if _, ok := severityRank[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
	return s, nil
}

// CalculateSeverity classifies the growth of a count from one snapshot to
// the next.
func CalculateSeverity(from, to int64) string {
	if from <= 0 {
		if to >= newEntryWarning {
			return SeverityWarning
		}
		return SeverityInfo
	}

	switch ratio := float64(to) / float64(from); {
	case ratio >= criticalRatio:
		return SeverityCritical
	case ratio >= warningRatio:
		return SeverityWarning
	}
	return SeverityInfo
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b string) string {
	if severityRank[a] >= severityRank[b] {
		return a
	}
	return b
}

// AtLeast reports whether severity is at or above minSeverity.
// An empty minSeverity matches everything.
func AtLeast(severity, minSeverity string) bool {
	if minSeverity == "" {
		return true
	}
	return severityRank[severity] >= severityRank[minSeverity]
}
