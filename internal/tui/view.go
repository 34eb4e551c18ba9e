package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

const (
	cellWidth    = 14
	minNameWidth = 24
	barWidth     = 5
)

// View renders the table.
func (m Model) View() string {
	var s strings.Builder

	title := fmt.Sprintf("Cardinality explorer: %s", m.Kind())
	if m.opts.Focus != "" && m.Kind() == models.KindPairs {
		title += fmt.Sprintf(" (focus %s)", m.opts.Focus)
	}
	s.WriteString(titleStyle.Render(title) + "\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
		s.WriteString(helpStyle.Render("[r] retry  [q] quit"))
		return s.String()
	}

	if m.loading && len(m.headers) == 0 {
		s.WriteString("Loading...\n")
		return s.String()
	}

	s.WriteString(m.renderSummary() + "\n\n")

	widths := m.columnWidths()
	s.WriteString(m.renderHeader(widths) + "\n")

	if len(m.rows) == 0 {
		s.WriteString(mutedStyle.Render("No entries") + "\n")
	} else {
		end := min(m.scroll+m.visibleRows(), len(m.rows))
		for _, row := range m.rows[m.scroll:end] {
			s.WriteString(m.renderRow(row, widths) + "\n")
		}
	}

	if m.message != "" {
		s.WriteString("\n" + m.message + "\n")
	}

	help := "[←/→] column  [enter] sort  [↑/↓] scroll  [tab] kind  [r] refresh  [q] quit"
	if m.opts.Paging {
		help = "[←/→] column  [enter] sort  [↑/↓] scroll  [n/p] page  [tab] kind  [r] refresh  [q] quit"
	}
	s.WriteString(helpStyle.Render(help))

	return s.String()
}

func (m Model) renderSummary() string {
	parts := []string{
		fmt.Sprintf("snapshot %s", m.snapshot),
	}
	if m.compare != "" {
		parts = append(parts, fmt.Sprintf("compared with %s", m.compare))
	}
	parts = append(parts, fmt.Sprintf("%s series", humanize.Comma(m.totalSeries)))
	switch m.maxSeverity {
	case models.SeverityCritical:
		parts = append(parts, criticalStyle.Render("critical growth"))
	case models.SeverityWarning:
		parts = append(parts, warningStyle.Render("growth warning"))
	}

	if m.opts.Paging && m.total > 0 {
		last := m.offset + len(m.rows)
		parts = append(parts, fmt.Sprintf("rows %d-%d of %d", m.offset+1, last, m.total))
	} else {
		parts = append(parts, fmt.Sprintf("%d rows", len(m.rows)))
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}

// columnWidths gives the name column the space left over by the others.
func (m Model) columnWidths() []int {
	widths := make([]int, len(m.headers))
	fixed := 0
	for i, h := range m.headers {
		if h.ID != table.ColumnName {
			widths[i] = cellWidth
			fixed += cellWidth + 1
		}
	}
	for i, h := range m.headers {
		if h.ID == table.ColumnName {
			widths[i] = max(minNameWidth, m.width-fixed-1)
		}
	}
	return widths
}

func (m Model) renderHeader(widths []int) string {
	cells := make([]string, len(m.headers))
	for i, h := range m.headers {
		label := h.Label
		if h.ID == m.sort.OrderBy && m.sort.Order.Valid() {
			if m.sort.Order == table.Ascending {
				label += " ▲"
			} else {
				label += " ▼"
			}
		}
		cell := runewidth.FillRight(runewidth.Truncate(label, widths[i], "…"), widths[i])
		if i == m.selected {
			cells[i] = selectedHeaderStyle.Render(cell)
		} else {
			cells[i] = headerStyle.Render(cell)
		}
	}
	return strings.Join(cells, headerStyle.Render(" "))
}

func (m Model) renderRow(row table.Row, widths []int) string {
	cells := make([]string, len(m.headers))
	for i, h := range m.headers {
		text := formatCell(row, h.ID)
		text = runewidth.Truncate(text, widths[i], "…")
		if h.ID == table.ColumnName || h.ID == table.ColumnActions {
			text = runewidth.FillRight(text, widths[i])
		} else {
			text = runewidth.FillLeft(text, widths[i])
		}

		if h.ID == table.ColumnActions {
			switch _, sev := models.ParseAction(row.Actions); sev {
			case models.SeverityCritical:
				text = criticalStyle.Render(text)
			case models.SeverityWarning:
				text = warningStyle.Render(text)
			}
		}
		cells[i] = text
	}
	return strings.Join(cells, " ")
}

// formatCell renders one Row field.
func formatCell(row table.Row, col table.Column) string {
	switch col {
	case table.ColumnName:
		return row.Name
	case table.ColumnActions:
		return row.Actions
	case table.ColumnValue:
		return humanize.Comma(row.Value)
	case table.ColumnValuePrev:
		return humanize.Comma(row.ValuePrev)
	case table.ColumnDiff:
		if row.Diff > 0 {
			return "+" + humanize.Comma(row.Diff)
		}
		return humanize.Comma(row.Diff)
	case table.ColumnDiffPercent:
		return fmt.Sprintf("%+.2f%%", row.DiffPercent)
	case table.ColumnProgressValue:
		return progressBar(row.ProgressValue) + fmt.Sprintf(" %.1f%%", row.ProgressValue)
	case table.ColumnRequestsCount:
		return humanize.Comma(row.RequestsCount)
	case table.ColumnLastRequestTimestamp:
		if row.LastRequestTimestamp == 0 {
			return "-"
		}
		return time.Unix(row.LastRequestTimestamp, 0).UTC().Format("2006-01-02 15:04")
	}
	return ""
}

// progressBar draws pct (0-100) as a fixed-width bar.
func progressBar(pct float64) string {
	filled := int(pct / 100 * barWidth)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
