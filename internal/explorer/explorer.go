// Package explorer turns live and stored cardinality snapshots into sortable
// statistic tables.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fidde/cardinality_explorer/internal/storage"
	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// LiveSnapshotID names the snapshot built from the collector on demand.
const LiveSnapshotID = "live"

// Source produces snapshots of live state. *collector.Collector satisfies it.
type Source interface {
	Snapshot(id string, now time.Time) *models.Snapshot
	Reset()
}

// Config holds explorer configuration.
type Config struct {
	// MaxSnapshots is the number of stored snapshots kept. Zero keeps all.
	MaxSnapshots int

	// DefaultSort overrides the sort applied when a query names none.
	DefaultSort map[models.Kind]table.SortState
}

// DefaultConfig returns default explorer configuration.
func DefaultConfig() Config {
	return Config{
		MaxSnapshots: 48,
	}
}

// Service answers table queries and manages snapshots.
type Service struct {
	store  storage.Storage
	source Source
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	// snapshotMu serializes snapshot creation and pruning.
	snapshotMu sync.Mutex
}

// New creates a Service.
func New(store storage.Storage, source Source, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		source: source,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// DefaultSort returns the sort applied to kind when a query names none:
// the configured override, or value descending.
func (s *Service) DefaultSort(kind models.Kind) table.SortState {
	if st, ok := s.cfg.DefaultSort[kind]; ok {
		return st
	}
	st := table.NewSortState(table.ColumnValue)
	st.Order = table.Descending
	return st
}

// Query selects one statistics table.
type Query struct {
	Kind models.Kind

	// SnapshotID selects a stored snapshot. Empty means live state.
	SnapshotID string

	// CompareTo selects the previous snapshot. Empty means the newest stored
	// snapshot created before the current one.
	CompareTo string

	// Focus restricts pairs to one label name.
	Focus string

	// OrderBy and Order are raw column and order ids. Empty means default.
	OrderBy string
	Order   string

	// MinSeverity keeps only rows whose growth is at least this severity.
	MinSeverity string

	// TopN truncates the sorted rows. Zero means no limit.
	TopN int
}

// Result is one sorted statistics table.
type Result struct {
	Kind        models.Kind     `json:"kind"`
	Snapshot    string          `json:"snapshot"`
	Compare     string          `json:"compare,omitempty"`
	Focus       string          `json:"focus,omitempty"`
	Headers     table.Headers   `json:"headers"`
	Sort        table.SortState `json:"sort"`
	Rows        []table.Row     `json:"rows"`
	TotalRows   int             `json:"totalRows"`
	TotalSeries int64           `json:"totalSeries"`

	// MaxSeverity is the highest growth severity among the rows.
	MaxSeverity string `json:"maxSeverity"`
}

// resolveSort validates the requested sort against the kind's default.
func (s *Service) resolveSort(kind models.Kind, orderBy, order string) (table.SortState, error) {
	state := s.DefaultSort(kind)

	if orderBy != "" {
		col, err := table.ParseColumn(orderBy)
		if err != nil {
			return table.SortState{}, err
		}
		if col != state.OrderBy {
			state = table.SortState{OrderBy: col, Order: table.DefaultOrderForNewColumn}
		}
	}
	if order != "" {
		o, err := table.ParseOrder(order)
		if err != nil {
			return table.SortState{}, err
		}
		state.Order = o
	}
	return state, nil
}

// Table builds the table described by q.
func (s *Service) Table(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	kind, err := models.ParseKind(string(q.Kind))
	if err != nil {
		return nil, err
	}
	state, err := s.resolveSort(kind, q.OrderBy, q.Order)
	if err != nil {
		return nil, err
	}
	if q.MinSeverity != "" {
		if _, err := models.ParseSeverity(q.MinSeverity); err != nil {
			return nil, err
		}
	}

	current, err := s.currentSnapshot(ctx, q.SnapshotID)
	if err != nil {
		return nil, err
	}
	prev, err := s.previousSnapshot(ctx, current, q.CompareTo)
	if err != nil {
		return nil, err
	}

	var usage map[string]models.Usage
	if kind == models.KindMetrics {
		usage, err = s.store.ListUsage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing usage: %w", err)
		}
	}

	rows, maxSeverity := buildRows(kind, current, prev, usage, q.Focus, q.MinSeverity)
	sorted, err := state.Apply(rows)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Kind:        kind,
		Snapshot:    current.ID,
		Headers:     Headers(kind),
		Sort:        state,
		TotalRows:   len(sorted),
		TotalSeries: current.TotalSeries,
		MaxSeverity: maxSeverity,
	}
	if prev != nil {
		res.Compare = prev.ID
	}
	if kind == models.KindPairs {
		res.Focus = q.Focus
	}
	if q.TopN > 0 && len(sorted) > q.TopN {
		sorted = sorted[:q.TopN]
	}
	res.Rows = sorted

	tableQueriesTotal.WithLabelValues(string(kind)).Inc()
	tableQueryDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	return res, nil
}

func (s *Service) currentSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	if id == "" || id == LiveSnapshotID {
		return s.source.Snapshot(LiveSnapshotID, s.now()), nil
	}
	return s.store.GetSnapshot(ctx, id)
}

// previousSnapshot returns the snapshot to compare against, or nil when there
// is none.
func (s *Service) previousSnapshot(ctx context.Context, current *models.Snapshot, compareTo string) (*models.Snapshot, error) {
	if compareTo != "" {
		return s.store.GetSnapshot(ctx, compareTo)
	}

	list, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	// list is oldest first
	for i := len(list) - 1; i >= 0; i-- {
		meta := list[i]
		if meta.ID == current.ID || !meta.Created.Before(current.Created) {
			continue
		}
		prev, err := s.store.GetSnapshot(ctx, meta.ID)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted between list and get.
			continue
		}
		return prev, err
	}
	return nil, nil
}

// buildRows converts snapshot entries of kind into table rows and reports
// the highest growth severity among them.
func buildRows(kind models.Kind, current, prev *models.Snapshot, usage map[string]models.Usage, focus, minSeverity string) ([]table.Row, string) {
	entries := current.Entries[kind]
	prevValues := prev.Lookup(kind)

	total := current.TotalSeries
	if !kind.SeriesBased() {
		total = 0
		for _, e := range entries {
			total = max(total, e.Value)
		}
	}

	focusPrefix := ""
	if kind == models.KindPairs && focus != "" {
		focusPrefix = focus + "="
	}

	maxSeverity := models.SeverityInfo
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if focusPrefix != "" {
			if !strings.HasPrefix(name, focusPrefix) {
				continue
			}
			name = strings.TrimPrefix(name, focusPrefix)
		}

		prevValue := prevValues[e.Name]
		sev := models.SeverityInfo
		if prev != nil {
			sev = models.CalculateSeverity(prevValue, e.Value)
		}
		if !models.AtLeast(sev, minSeverity) {
			continue
		}
		maxSeverity = models.MaxSeverity(maxSeverity, sev)

		row := table.NewRow(name, e.Value, prevValue)
		row.ProgressValue = table.Progress(e.Value, total)
		row.Actions = models.WithSeverity(models.ActionFor(kind, e.Name), sev)
		if u, ok := usage[e.Name]; ok {
			row.RequestsCount = u.RequestsCount
			row.LastRequestTimestamp = u.LastRequestTimestamp
		}
		rows = append(rows, row)
	}
	return rows, maxSeverity
}
