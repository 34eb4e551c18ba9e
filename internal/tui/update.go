package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		cmd := m.fetch()
		return m, tea.Batch(cmd, tickCmd(m.opts.Refresh))

	case tableMsg:
		// Superseded by a later fetch or a local sort.
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		// A response for a kind we already left.
		if msg.page.Kind != "" && msg.page.Kind != m.Kind() {
			return m, nil
		}
		m.applyPage(msg.page)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "left", "h":
		if m.selected > 0 {
			m.selected--
		}

	case "right", "l":
		if m.selected < len(m.headers)-1 {
			m.selected++
		}

	case "enter", " ", "space":
		return m.requestSort()

	case "up", "k":
		if m.scroll > 0 {
			m.scroll--
		}

	case "down", "j":
		m.scroll++
		m.clampScroll()

	case "tab":
		return m.switchKind(1)

	case "shift+tab":
		return m.switchKind(len(models.Kinds) - 1)

	case "n":
		if m.opts.Paging && m.hasMore {
			m.offset += m.opts.PageSize
			cmd := m.fetch()
			return m, cmd
		}

	case "p":
		if m.opts.Paging && m.offset > 0 {
			m.offset -= m.opts.PageSize
			if m.offset < 0 {
				m.offset = 0
			}
			cmd := m.fetch()
			return m, cmd
		}

	case "r":
		m.message = "Refreshing..."
		cmd := m.fetch()
		return m, cmd
	}

	return m, nil
}

// requestSort applies a click on the selected header and re-sorts the rows
// held locally.
func (m Model) requestSort() (tea.Model, tea.Cmd) {
	if m.selected >= len(m.headers) {
		return m, nil
	}
	header := m.headers[m.selected]

	next := table.RequestSort(m.sort, m.headers, header.ID)
	if next == m.sort {
		m.message = fmt.Sprintf("%s is not sortable", header.Label)
		return m, nil
	}

	rows, err := table.Sort(m.rows, next.OrderBy, next.Order)
	if err != nil {
		m.message = fmt.Sprintf("Sort error: %v", err)
		return m, nil
	}

	m.sort = next
	m.rows = rows
	m.scroll = 0
	m.message = ""

	// A page holds only part of the table, so the order across pages
	// has to come from the server.
	if m.opts.Paging && (m.offset > 0 || m.hasMore) {
		m.offset = 0
		cmd := m.fetch()
		return m, cmd
	}

	// Responses still in flight carry the previous sort.
	m.seq++
	m.loading = false
	return m, nil
}

// switchKind moves step kinds forward and reloads with the server default sort.
func (m Model) switchKind(step int) (tea.Model, tea.Cmd) {
	m.kindIdx = (m.kindIdx + step) % len(models.Kinds)
	m.headers = nil
	m.rows = nil
	m.sort = table.SortState{}
	m.selected = 0
	m.scroll = 0
	m.offset = 0
	m.message = ""
	cmd := m.fetch()
	return m, cmd
}

func (m *Model) applyPage(page *TablePage) {
	firstLoad := len(m.headers) == 0

	m.err = nil
	m.message = ""
	m.headers = page.Headers
	m.rows = page.Rows
	m.sort = page.Sort
	m.total = page.Total
	m.offset = page.Offset
	m.hasMore = page.HasMore
	m.snapshot = page.Snapshot
	m.compare = page.Compare
	m.totalSeries = page.TotalSeries
	m.maxSeverity = page.MaxSeverity

	if firstLoad {
		if i := m.headers.Index(m.sort.OrderBy); i >= 0 {
			m.selected = i
		}
	}
	if m.selected >= len(m.headers) {
		m.selected = max(len(m.headers)-1, 0)
	}
	m.clampScroll()
}

// visibleRows is the number of table rows that fit on screen.
func (m Model) visibleRows() int {
	const chrome = 9 // title, summary, header, help and message lines
	if m.height <= chrome {
		return 20
	}
	return m.height - chrome
}

func (m *Model) clampScroll() {
	maxScroll := len(m.rows) - m.visibleRows()
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
}
