package widgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
)

type Keybind struct {
	Key   string
	Label string
}

// Header is the title bar: name, pipeline status on the left, elapsed time
// on the right, and a rule underneath.
type Header struct {
	Title      string
	Status     string
	StatusIcon string
	StatusOk   bool
	Elapsed    time.Duration
	Width      int
	theme      styles.Theme
}

func NewHeader(title string) Header {
	return Header{
		Title: title,
		theme: styles.DefaultTheme(),
	}
}

func (h Header) WithStatus(icon, status string, ok bool) Header {
	h.StatusIcon = icon
	h.Status = status
	h.StatusOk = ok
	return h
}

func (h Header) WithElapsed(d time.Duration) Header {
	h.Elapsed = d
	return h
}

func (h Header) WithWidth(w int) Header {
	h.Width = w
	return h
}

func (h Header) Render() string {
	theme := h.theme

	titlePart := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary).
		Padding(0, 1).
		Render(h.Title)

	left := titlePart
	if h.Status != "" {
		statusStyle := theme.EventOK
		if !h.StatusOk {
			statusStyle = theme.EventError
		}
		icon := h.StatusIcon
		if icon == "" {
			icon = styles.IconBullet
		}
		left = lipgloss.JoinHorizontal(lipgloss.Center, left, "  ",
			statusStyle.Render(icon)+" "+lipgloss.NewStyle().Foreground(theme.Text).Render(h.Status))
	}

	right := ""
	if h.Elapsed > 0 {
		right = theme.TitleMuted.Render("Watching: " + formatDuration(h.Elapsed))
	}

	spacing := h.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", spacing), right)

	return lipgloss.JoinVertical(lipgloss.Left, line, Rule(h.Width, theme))
}

// Rule is a full-width separator line.
func Rule(width int, theme styles.Theme) string {
	if width <= 0 {
		width = 80
	}
	return lipgloss.NewStyle().Foreground(theme.Muted).Render(strings.Repeat("━", width))
}

func RenderKeybinds(keybinds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(keybinds)*2)
	for i, kb := range keybinds {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]"))
		parts = append(parts, theme.Keybind.Render(" "+kb.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
