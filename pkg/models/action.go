package models

import "strings"

// Action prefixes carried in a table row's actions field.
const (
	ActionFocus = "focus:"
	ActionMatch = "match:"
	ActionPair  = "pair:"
)

// ActionFor returns the drill-down key for an entry of kind.
func ActionFor(kind Kind, name string) string {
	switch kind {
	case KindMetrics:
		return ActionMatch + name
	case KindPairs:
		return ActionPair + name
	default:
		return ActionFocus + name
	}
}

// WithSeverity appends a non-info severity to an action key.
func WithSeverity(key, severity string) string {
	if severity == "" || severity == SeverityInfo {
		return key
	}
	return key + "!" + severity
}

// ParseAction splits an actions value into its drill-down key and severity.
// The severity is empty for info.
func ParseAction(action string) (key, severity string) {
	i := strings.LastIndexByte(action, '!')
	if i < 0 {
		return action, ""
	}
	switch sev := action[i+1:]; sev {
	case SeverityWarning, SeverityCritical:
		return action[:i], sev
	}
	return action, ""
}
