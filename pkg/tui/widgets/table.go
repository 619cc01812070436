package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
)

type TableColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

type TableRow struct {
	Icon  string
	Cells []string
}

// Table renders fixed-width rows with an optional header line.
type Table struct {
	Columns []TableColumn
	Rows    []TableRow
	theme   styles.Theme
}

func NewTable(cols []TableColumn) Table {
	return Table{
		Columns: cols,
		theme:   styles.DefaultTheme(),
	}
}

func (t Table) WithRows(rows []TableRow) Table {
	t.Rows = rows
	return t
}

func (t Table) Render() string {
	if len(t.Rows) == 0 {
		return t.theme.TitleMuted.Render("(no flows yet)")
	}

	lines := make([]string, 0, len(t.Rows)+1)
	header := make([]string, 0, len(t.Columns)+1)
	header = append(header, "  ")
	for _, c := range t.Columns {
		header = append(header, cell(c, c.Header, t.theme.TitleMuted))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, row := range t.Rows {
		parts := make([]string, 0, len(row.Cells)+1)
		iconStyle := t.theme.EventOK
		switch row.Icon {
		case styles.IconError:
			iconStyle = t.theme.EventError
		case styles.IconPending:
			iconStyle = t.theme.TitleMuted
		}
		icon := row.Icon
		if icon == "" {
			icon = " "
		}
		parts = append(parts, iconStyle.Render(icon)+" ")
		for j, c := range row.Cells {
			col := TableColumn{Width: 20}
			if j < len(t.Columns) {
				col = t.Columns[j]
			}
			parts = append(parts, cell(col, c, lipgloss.NewStyle().Foreground(t.theme.Text)))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}
	return strings.Join(lines, "\n")
}

func cell(col TableColumn, s string, style lipgloss.Style) string {
	width := col.Width
	if width <= 0 {
		width = 20
	}
	r := []rune(s)
	if len(r) > width {
		s = string(r[:width-1]) + "…"
	}
	return style.Width(width).Align(col.Align).Render(s)
}
