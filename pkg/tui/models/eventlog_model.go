package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/tui"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
	"github.com/go-go-golems/dltctl/pkg/tui/widgets"
)

// EventLogModel is the scrolling list of event lines with a "/" text filter
// matched against the type and message.
type EventLogModel struct {
	max     int
	entries []tui.EventLogEntry

	width  int
	height int

	searching bool
	search    textinput.Model
	filter    string

	vp viewport.Model
}

func NewEventLogModel() EventLogModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200

	return EventLogModel{max: 1000, search: search, vp: viewport.New(0, 0)}
}

func (m EventLogModel) Searching() bool { return m.searching }

func (m EventLogModel) Len() int { return len(m.entries) }

func (m EventLogModel) WithSize(width, height int) EventLogModel {
	m.width, m.height = width, height
	m.vp.Width = maxInt(0, width-2)
	m.vp.Height = maxInt(3, height-3)
	return m.refresh(false)
}

func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.searching {
		switch v.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			return m, nil
		case "enter":
			m.filter = strings.TrimSpace(m.search.Value())
			m.searching = false
			m.search.Blur()
			return m.refresh(true), nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(v)
		return m, cmd
	}

	switch v.String() {
	case "/":
		m.searching = true
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return m, nil
	case "ctrl+l":
		m.filter = ""
		m.search.SetValue("")
		return m.refresh(true), nil
	case "c":
		m.entries = nil
		return m.refresh(true), nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(v)
	return m, cmd
}

func (m EventLogModel) Append(e tui.EventLogEntry) EventLogModel {
	m.entries = append(m.entries, e)
	if m.max > 0 && len(m.entries) > m.max {
		m.entries = append([]tui.EventLogEntry{}, m.entries[len(m.entries)-m.max:]...)
	}
	return m.refresh(true)
}

func (m EventLogModel) View() string {
	theme := styles.DefaultTheme()

	hint := "[/] filter  [c] clear  [↑/↓] scroll"
	if m.filter != "" {
		hint = fmt.Sprintf("filter=%q  %s", m.filter, hint)
	}

	var sections []string
	if m.searching {
		sections = append(sections, m.search.View())
	}

	content := m.vp.View()
	height := m.vp.Height + 3
	if len(m.entries) == 0 {
		content = theme.TitleMuted.Render("(waiting for events)")
		height = 5
	}
	sections = append(sections, widgets.NewBox(fmt.Sprintf("Events (%d)", len(m.entries))).
		WithHint(hint).
		WithContent(content).
		WithSize(m.width, height).
		Render())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m EventLogModel) refresh(gotoBottom bool) EventLogModel {
	theme := styles.DefaultTheme()

	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if m.filter != "" && !strings.Contains(e.Text, m.filter) && !strings.Contains(e.Source, m.filter) {
			continue
		}
		style := theme.LevelStyle(string(e.Level))
		ts := "--:--:--.---"
		if !e.At.IsZero() {
			ts = e.At.UTC().Format("15:04:05.000")
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s",
			style.Render(styles.LevelIcon(string(e.Level))),
			theme.Timestamp.Render(ts),
			style.Render(padRight(e.Source, len(events.TypeMaintenanceProgress))),
			e.Text,
		))
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if gotoBottom {
		m.vp.GotoBottom()
	}
	return m
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
