// Package tui renders cardinality statistics tables in the terminal.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// Options configure a Model.
type Options struct {
	Kind      models.Kind
	Snapshot  string
	CompareTo string
	Focus     string
	Paging    bool
	PageSize  int

	// MinSeverity hides rows that grew less than this severity.
	MinSeverity string

	// Refresh reloads the table periodically. Zero disables it.
	Refresh time.Duration
}

// Model is the table viewer state. Each Model owns its own sort state.
type Model struct {
	fetcher Fetcher
	opts    Options

	kindIdx int
	headers table.Headers
	rows    []table.Row
	sort    table.SortState

	// selected is the index of the highlighted header.
	selected int
	// scroll is the first visible row.
	scroll int

	offset  int
	total   int
	hasMore bool

	snapshot    string
	compare     string
	totalSeries int64
	maxSeverity string

	// seq identifies the latest fetch. Older responses are dropped.
	seq int

	loading bool
	err     error
	message string
	width   int
	height  int
}

// Message types for the update loop.
type tickMsg time.Time

type tableMsg struct {
	seq  int
	page *TablePage
	err  error
}

// NewModel creates a viewer reading from fetcher.
func NewModel(fetcher Fetcher, opts Options) Model {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}

	kindIdx := 0
	for i, k := range models.Kinds {
		if k == opts.Kind {
			kindIdx = i
		}
	}

	return Model{
		fetcher: fetcher,
		opts:    opts,
		kindIdx: kindIdx,
		seq:     1,
		loading: true,
	}
}

// Init fetches the first page.
func (m Model) Init() tea.Cmd {
	if m.opts.Refresh > 0 {
		return tea.Batch(m.fetchCmd(m.seq), tickCmd(m.opts.Refresh))
	}
	return m.fetchCmd(m.seq)
}

// Kind returns the kind currently shown.
func (m Model) Kind() models.Kind {
	return models.Kinds[m.kindIdx]
}

// Rows returns the rows currently shown, in display order.
func (m Model) Rows() []table.Row {
	return m.rows
}

// SortState returns the active sort.
func (m Model) SortState() table.SortState {
	return m.sort
}

func (m Model) query() TableQuery {
	return TableQuery{
		Kind:        m.Kind(),
		Snapshot:    m.opts.Snapshot,
		CompareTo:   m.opts.CompareTo,
		Focus:       m.opts.Focus,
		MinSeverity: m.opts.MinSeverity,
		Sort:        m.sort,
		Paging:      m.opts.Paging,
		Limit:       m.opts.PageSize,
		Offset:      m.offset,
	}
}

// fetch starts a new request for the current page, superseding any
// request still in flight.
func (m *Model) fetch() tea.Cmd {
	m.seq++
	m.loading = true
	return m.fetchCmd(m.seq)
}

// fetchCmd creates a command loading the current page tagged with seq.
func (m Model) fetchCmd(seq int) tea.Cmd {
	fetcher := m.fetcher
	q := m.query()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		page, err := fetcher.Table(ctx, q)
		return tableMsg{seq: seq, page: page, err: err}
	}
}

// tickCmd creates a command that sends a tick message after d.
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
