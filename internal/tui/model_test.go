package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

var testHeaders = table.Headers{
	{ID: table.ColumnName, Label: "Name", Sortable: true},
	{ID: table.ColumnValue, Label: "Series", Sortable: true},
	{ID: table.ColumnDiff, Label: "Diff", Sortable: true},
	{ID: table.ColumnActions, Label: "Action"},
}

// fakeFetcher serves a fixed table, sorted and paged like the API.
type fakeFetcher struct {
	mu       sync.Mutex
	rows     []table.Row
	err      error
	severity string
	queries  []TableQuery
}

func (f *fakeFetcher) Table(_ context.Context, q TableQuery) (*TablePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}

	sort := q.Sort
	if !sort.Order.Valid() {
		sort = table.SortState{OrderBy: table.ColumnValue, Order: table.Descending}
	}
	rows, err := table.Sort(f.rows, sort.OrderBy, sort.Order)
	if err != nil {
		return nil, err
	}

	page := &TablePage{
		Kind:        q.Kind,
		Snapshot:    "live",
		Headers:     testHeaders,
		Sort:        sort,
		MaxSeverity: f.severity,
		Total:       len(rows),
		Offset:      q.Offset,
	}
	if q.Paging {
		end := min(q.Offset+q.Limit, len(rows))
		start := min(q.Offset, end)
		page.Rows = rows[start:end]
		page.HasMore = end < len(rows)
	} else {
		page.Rows = rows
	}
	return page, nil
}

func (f *fakeFetcher) lastQuery() TableQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func testRows() []table.Row {
	return []table.Row{
		table.NewRow("b", 10, 5),
		table.NewRow("a", 30, 40),
		table.NewRow("c", 20, 0),
	}
}

func rowNames(rows []table.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

// run feeds msg to m and executes any resulting command once, feeding its
// message back.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, quit := out.(tea.QuitMsg); !quit {
				next, _ = m.Update(out)
				m = next.(Model)
			}
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, f *fakeFetcher, opts Options) Model {
	t.Helper()
	m := NewModel(f, opts)
	msg := m.Init()()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_InitialLoad(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{Kind: models.KindLabels})

	assert.Equal(t, models.KindLabels, m.Kind())
	assert.Equal(t, []string{"a", "c", "b"}, rowNames(m.Rows()))
	assert.Equal(t, table.SortState{OrderBy: table.ColumnValue, Order: table.Descending}, m.SortState())
	assert.Equal(t, 1, m.selected, "selection starts on the sorted column")
	assert.False(t, f.lastQuery().Sort.Order.Valid(), "first fetch uses the server default")
}

func TestModel_HeaderClickSortsLocally(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{Kind: models.KindMetrics})
	fetches := len(f.queries)

	// Same column toggles direction.
	m = run(t, m, key("enter"))
	assert.Equal(t, table.SortState{OrderBy: table.ColumnValue, Order: table.Ascending}, m.SortState())
	assert.Equal(t, []string{"b", "c", "a"}, rowNames(m.Rows()))

	// A new column starts ascending.
	m = run(t, m, key("left"))
	m = run(t, m, key("enter"))
	assert.Equal(t, table.SortState{OrderBy: table.ColumnName, Order: table.Ascending}, m.SortState())
	assert.Equal(t, []string{"a", "b", "c"}, rowNames(m.Rows()))

	m = run(t, m, key(" "))
	assert.Equal(t, table.Descending, m.SortState().Order)
	assert.Equal(t, []string{"c", "b", "a"}, rowNames(m.Rows()))

	assert.Len(t, f.queries, fetches, "an unpaged table is re-sorted without fetching")
}

func TestModel_NonSortableHeaderIsNoop(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{})
	before := m.SortState()

	m = run(t, m, key("right"))
	m = run(t, m, key("right"))
	m = run(t, m, key("right"))
	require.Equal(t, 3, m.selected)
	m = run(t, m, key("enter"))

	assert.Equal(t, before, m.SortState())
	assert.Equal(t, []string{"a", "c", "b"}, rowNames(m.Rows()))
	assert.Contains(t, m.message, "not sortable")
}

func TestModel_SelectionStaysInRange(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{})

	for range 10 {
		m = run(t, m, key("right"))
	}
	assert.Equal(t, len(testHeaders)-1, m.selected)

	for range 10 {
		m = run(t, m, key("left"))
	}
	assert.Equal(t, 0, m.selected)
}

func TestModel_SwitchKind(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{Kind: models.KindMetrics})
	m = run(t, m, key("enter"))
	require.Equal(t, table.Ascending, m.SortState().Order)

	m = run(t, m, key("tab"))
	assert.Equal(t, models.KindLabels, m.Kind())
	assert.Equal(t, models.KindLabels, f.lastQuery().Kind)
	assert.False(t, f.lastQuery().Sort.Order.Valid(), "switching kind resets to the default sort")
	assert.Equal(t, table.Descending, m.SortState().Order)

	m = run(t, m, key("shift+tab"))
	m = run(t, m, key("shift+tab"))
	assert.Equal(t, models.KindPairs, m.Kind())
}

func TestModel_IgnoresStalePage(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{Kind: models.KindMetrics})

	next, _ := m.Update(tableMsg{seq: m.seq, page: &TablePage{Kind: models.KindPairs, Headers: testHeaders}})
	m = next.(Model)
	assert.Len(t, m.Rows(), 3)

	// A refresh sent before a header click must not undo the click.
	refresh := m.fetch()
	m = run(t, m, key("enter"))
	require.Equal(t, table.SortState{OrderBy: table.ColumnValue, Order: table.Ascending}, m.SortState())

	next, _ = m.Update(refresh())
	m = next.(Model)
	assert.Equal(t, table.SortState{OrderBy: table.ColumnValue, Order: table.Ascending}, m.SortState())
	assert.Equal(t, []string{"b", "c", "a"}, rowNames(m.Rows()))
	assert.False(t, m.loading)

	// An older refresh is dropped once a newer one was sent.
	older := m.fetch()
	newer := m.fetch()
	next, _ = m.Update(newer())
	m = next.(Model)
	f.rows = []table.Row{table.NewRow("z", 1, 0)}
	next, _ = m.Update(older())
	m = next.(Model)
	assert.Equal(t, []string{"b", "c", "a"}, rowNames(m.Rows()))
}

func TestModel_Paging(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{Paging: true, PageSize: 2})
	assert.Equal(t, []string{"a", "c"}, rowNames(m.Rows()))
	assert.True(t, m.hasMore)

	m = run(t, m, key("n"))
	assert.Equal(t, 2, f.lastQuery().Offset)
	assert.Equal(t, []string{"b"}, rowNames(m.Rows()))
	assert.False(t, m.hasMore)

	queries := len(f.queries)
	m = run(t, m, key("n"))
	assert.Len(t, f.queries, queries, "no page after the last")

	// Sorting while paged goes back to the first page with the new order.
	m = run(t, m, key("enter"))
	assert.Equal(t, 0, f.lastQuery().Offset)
	assert.Equal(t, table.Ascending, f.lastQuery().Sort.Order)
	assert.Equal(t, []string{"b", "c"}, rowNames(m.Rows()))

	m = run(t, m, key("n"))
	m = run(t, m, key("p"))
	assert.Equal(t, 0, f.lastQuery().Offset)
	assert.Equal(t, []string{"b", "c"}, rowNames(m.Rows()))
}

func TestModel_PagingDisabledIgnoresPageKeys(t *testing.T) {
	f := &fakeFetcher{rows: testRows()}
	m := loaded(t, f, Options{})
	queries := len(f.queries)

	m = run(t, m, key("n"))
	m = run(t, m, key("p"))
	assert.Len(t, f.queries, queries)
	assert.False(t, f.lastQuery().Paging)
	assert.Len(t, m.Rows(), 3)
}

func TestModel_FetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	m := loaded(t, f, Options{})

	assert.Error(t, m.err)
	assert.Contains(t, m.View(), "connection refused")

	f.err = nil
	f.rows = testRows()
	m = run(t, m, key("r"))
	assert.NoError(t, m.err)
	assert.Len(t, m.Rows(), 3)
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(&fakeFetcher{}, Options{})
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_View(t *testing.T) {
	f := &fakeFetcher{rows: []table.Row{
		{Name: "http_requests_total", Value: 12345, Diff: 345, Actions: "match:http_requests_total!critical"},
	}}
	m := loaded(t, f, Options{Kind: models.KindMetrics})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "Cardinality explorer: metrics")
	assert.Contains(t, view, "Series ▼")
	assert.Contains(t, view, "http_requests_total")
	assert.Contains(t, view, "12,345")
	assert.Contains(t, view, "+345")
}

func TestModel_MinSeverity(t *testing.T) {
	f := &fakeFetcher{rows: testRows(), severity: models.SeverityCritical}
	m := loaded(t, f, Options{Kind: models.KindMetrics, MinSeverity: models.SeverityWarning})

	assert.Equal(t, models.SeverityWarning, f.lastQuery().MinSeverity)
	assert.Contains(t, m.View(), "critical growth")
}

func TestFormatCell(t *testing.T) {
	row := table.Row{
		Name:                 "up",
		Value:                1500,
		ValuePrev:            1000,
		Diff:                 -20,
		DiffPercent:          50,
		ProgressValue:        60,
		LastRequestTimestamp: 1700000000,
		RequestsCount:        2,
	}

	assert.Equal(t, "up", formatCell(row, table.ColumnName))
	assert.Equal(t, "1,500", formatCell(row, table.ColumnValue))
	assert.Equal(t, "1,000", formatCell(row, table.ColumnValuePrev))
	assert.Equal(t, "-20", formatCell(row, table.ColumnDiff))
	assert.Equal(t, "+50.00%", formatCell(row, table.ColumnDiffPercent))
	assert.Equal(t, "███░░ 60.0%", formatCell(row, table.ColumnProgressValue))
	assert.Equal(t, "2023-11-14 22:13", formatCell(row, table.ColumnLastRequestTimestamp))
	assert.Equal(t, "-", formatCell(table.Row{}, table.ColumnLastRequestTimestamp))
}
