package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is a header-plus-rows table sized to the terminal.
type Table struct {
	display *DisplayContext
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(display *DisplayContext, headers ...string) *Table {
	if display == nil {
		display = NewDisplayContextWithWidth(DefaultTermWidth)
	}
	return &Table{display: display, headers: headers}
}

// AddRow adds a row; missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// columnWidth splits the usable width evenly, leaving a two space margin.
func (t *Table) columnWidth() int {
	if len(t.headers) == 0 {
		return 0
	}
	const columnPadding = 2
	available := t.display.AvailableWidth(2) - (len(t.headers)-1)*columnPadding
	w := available / len(t.headers)
	if w < 8 {
		w = 8
	}
	return w
}

// String renders the table. An empty table renders as "".
func (t *Table) String() string {
	if len(t.rows) == 0 {
		return ""
	}
	width := t.columnWidth()

	tableRows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = TruncateWithEllipsis(cell, width)
		}
		tableRows[i] = cells
	}

	tbl := table.New().
		Border(lipgloss.Border{
			Top:    "─",
			Bottom: "─",
			Left:   "",
			Right:  "",
			Middle: "─",
		}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(true).
		BorderRow(false).
		BorderColumn(false).
		BorderStyle(Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle()
			if row == table.HeaderRow {
				style = Bold
			}
			if col < len(t.headers)-1 {
				style = style.PaddingRight(2)
			}
			return style
		}).
		Headers(t.headers...).
		Rows(tableRows...)

	return tbl.Render()
}

// TruncateWithEllipsis truncates a string to maxLen runes, adding an
// ellipsis if needed. It tries to break at word boundaries.
func TruncateWithEllipsis(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	truncated := string(runes[:maxLen-3])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > len(truncated)/2 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
