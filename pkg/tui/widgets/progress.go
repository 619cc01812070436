package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
)

// IdleMeter shows how much of the quiet-poll budget is used up before the
// monitor gives up watching.
type IdleMeter struct {
	idle  int
	max   int
	width int
	theme styles.Theme
}

func NewIdleMeter(idle, max int) IdleMeter {
	if idle < 0 {
		idle = 0
	}
	if max > 0 && idle > max {
		idle = max
	}
	return IdleMeter{idle: idle, max: max, width: 20, theme: styles.DefaultTheme()}
}

func (m IdleMeter) WithWidth(width int) IdleMeter {
	if width < 5 {
		width = 5
	}
	m.width = width
	return m
}

func (m IdleMeter) Render() string {
	if m.max <= 0 {
		return m.theme.TitleMuted.Render("idle -/-")
	}
	filled := m.width * m.idle / m.max
	style := m.theme.EventOK
	if m.idle*4 >= m.max*3 {
		style = lipgloss.NewStyle().Foreground(m.theme.Warning)
	}
	bar := style.Render(strings.Repeat("█", filled)) + strings.Repeat("░", m.width-filled)
	return fmt.Sprintf("idle %s %d/%d", bar, m.idle, m.max)
}
