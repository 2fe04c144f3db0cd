package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/defilend/internal/ui/style"
)

// TableColumn represents a column configuration
type TableColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// TableRow represents a row of data
type TableRow struct {
	Data  []string
	Style *lipgloss.Style
}

// Table is a scrolling read-only table with a selected row.
type Table struct {
	columns  []TableColumn
	rows     []TableRow
	height   int
	selected int
	offset   int

	headerStyle      lipgloss.Style
	rowStyle         lipgloss.Style
	selectedRowStyle lipgloss.Style
	borderStyle      lipgloss.Style
}

func NewTable(columns ...TableColumn) *Table {
	palette := style.DefaultPalette()

	return &Table{
		columns: columns,
		height:  10,

		headerStyle: lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true).
			Padding(0, 1),

		rowStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1),

		selectedRowStyle: lipgloss.NewStyle().
			Foreground(palette.Background).
			Background(palette.Primary).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted),
	}
}

// SetRows replaces the rows, keeping the selection in range.
func (t *Table) SetRows(rows []TableRow) *Table {
	t.rows = rows
	if t.selected >= len(rows) {
		t.selected = max(len(rows)-1, 0)
	}
	t.clampOffset()
	return t
}

// SetHeight sets the number of visible rows.
func (t *Table) SetHeight(height int) *Table {
	t.height = max(height, 1)
	t.clampOffset()
	return t
}

func (t *Table) MoveUp() *Table {
	if t.selected > 0 {
		t.selected--
	}
	t.clampOffset()
	return t
}

func (t *Table) MoveDown() *Table {
	if t.selected < len(t.rows)-1 {
		t.selected++
	}
	t.clampOffset()
	return t
}

func (t *Table) Selected() int {
	return t.selected
}

func (t *Table) RowCount() int {
	return len(t.rows)
}

func (t *Table) clampOffset() {
	if t.selected < t.offset {
		t.offset = t.selected
	}
	if t.selected >= t.offset+t.height {
		t.offset = t.selected - t.height + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

func (t *Table) View() string {
	var content strings.Builder

	for i, col := range t.columns {
		content.WriteString(renderCell(col.Header, col.Width, col.Align, t.headerStyle))
		if i < len(t.columns)-1 {
			content.WriteString("│")
		}
	}
	content.WriteString("\n")
	for i, col := range t.columns {
		content.WriteString(strings.Repeat("─", col.Width+2))
		if i < len(t.columns)-1 {
			content.WriteString("┼")
		}
	}

	end := min(t.offset+t.height, len(t.rows))
	for rowIndex := t.offset; rowIndex < end; rowIndex++ {
		row := t.rows[rowIndex]
		rowStyle := t.rowStyle
		if row.Style != nil {
			rowStyle = *row.Style
		}
		if rowIndex == t.selected {
			rowStyle = t.selectedRowStyle
		}

		content.WriteString("\n")
		for i, col := range t.columns {
			cell := ""
			if i < len(row.Data) {
				cell = row.Data[i]
			}
			content.WriteString(renderCell(cell, col.Width, col.Align, rowStyle))
			if i < len(t.columns)-1 {
				content.WriteString("│")
			}
		}
	}

	return t.borderStyle.Render(content.String())
}

func renderCell(content string, width int, align lipgloss.Position, style lipgloss.Style) string {
	if r := []rune(content); len(r) > width {
		if width > 1 {
			content = string(r[:width-1]) + "…"
		} else {
			content = string(r[:width])
		}
	}
	return style.Width(width + 2).Align(align).Render(content)
}
