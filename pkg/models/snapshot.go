// Package models defines the core data structures for cardinality tracking.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"facette.io/natsort"
)

var snapshotIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*[a-z0-9]$|^[a-z0-9]$`)

// Snapshot errors
var (
	ErrNotFound          = errors.New("not found")
	ErrSnapshotNotFound  = fmt.Errorf("snapshot %w", ErrNotFound)
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrInvalidSnapshotID = errors.New("invalid snapshot id: must be lowercase alphanumeric with hyphens")
	ErrUnknownKind       = errors.New("unknown statistics kind")
)

// ValidateSnapshotID checks that id is lowercase alphanumeric with inner
// hyphens and at most 128 characters.
func ValidateSnapshotID(id string) error {
	if id == "" || len(id) > 128 {
		return ErrInvalidSnapshotID
	}
	if !snapshotIDRegex.MatchString(id) {
		return ErrInvalidSnapshotID
	}
	return nil
}

// Kind selects which statistic a table shows.
type Kind string

// Statistic kinds.
const (
	// KindMetrics counts series per metric name.
	KindMetrics Kind = "metrics"
	// KindLabels counts series per label name.
	KindLabels Kind = "labels"
	// KindLabelValues counts distinct values per label name.
	KindLabelValues Kind = "label_values"
	// KindPairs counts series per label=value pair.
	KindPairs Kind = "pairs"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindMetrics, KindLabels, KindLabelValues, KindPairs}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// SeriesBased reports whether entry values of this kind are series counts.
func (k Kind) SeriesBased() bool {
	return k != KindLabelValues
}

// Entry is one named count inside a snapshot.
type Entry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Snapshot is the cardinality state at one point in time.
type Snapshot struct {
	ID          string           `json:"id"`
	Created     time.Time        `json:"created"`
	TotalSeries int64            `json:"total_series"`
	Entries     map[Kind][]Entry `json:"entries"`
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(id string, created time.Time) *Snapshot {
	return &Snapshot{
		ID:      id,
		Created: created.UTC(),
		Entries: make(map[Kind][]Entry, len(Kinds)),
	}
}

// Lookup returns entries of kind k indexed by name.
func (s *Snapshot) Lookup(k Kind) map[string]int64 {
	if s == nil {
		return map[string]int64{}
	}
	entries := s.Entries[k]
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Value
	}
	return out
}

// Metadata summarises the snapshot without its entries.
func (s *Snapshot) Metadata() SnapshotMetadata {
	counts := make(map[Kind]int, len(s.Entries))
	for k, entries := range s.Entries {
		counts[k] = len(entries)
	}
	return SnapshotMetadata{
		ID:          s.ID,
		Created:     s.Created,
		TotalSeries: s.TotalSeries,
		Counts:      counts,
	}
}

// SortEntries orders every kind's entries by name.
func (s *Snapshot) SortEntries() {
	for _, entries := range s.Entries {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name < entries[j].Name
		})
	}
}

// SnapshotMetadata contains information about a stored snapshot.
type SnapshotMetadata struct {
	ID          string       `json:"id"`
	Created     time.Time    `json:"created"`
	TotalSeries int64        `json:"total_series"`
	Counts      map[Kind]int `json:"counts"`
}

// Usage is the observed query usage of a metric name.
type Usage struct {
	Name                 string `json:"name"`
	RequestsCount        int64  `json:"requests_count"`
	LastRequestTimestamp int64  `json:"last_request_timestamp"`
}

// SortSnapshotMetadata orders snapshots oldest first, breaking ties by
// natural order of their ids ("auto-9" before "auto-10").
func SortSnapshotMetadata(list []SnapshotMetadata) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Created.Equal(list[j].Created) {
			return list[i].Created.Before(list[j].Created)
		}
		return natsort.Compare(list[i].ID, list[j].ID)
	})
}
