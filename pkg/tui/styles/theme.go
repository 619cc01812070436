package styles

import "github.com/charmbracelet/lipgloss"

// Theme holds the palette shared by the line printer and the TUI.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	TextDim   lipgloss.Color

	Border     lipgloss.Style
	Title      lipgloss.Style
	TitleMuted lipgloss.Style
	Keybind    lipgloss.Style
	KeybindKey lipgloss.Style
	EventOK    lipgloss.Style
	EventWarn  lipgloss.Style
	EventError lipgloss.Style
	Timestamp  lipgloss.Style
}

func DefaultTheme() Theme {
	return NewTheme(lipgloss.DefaultRenderer())
}

// NewTheme builds the styles against r so color output follows the
// capabilities of the writer r was created for.
func NewTheme(r *lipgloss.Renderer) Theme {
	primary := lipgloss.Color("#7C3AED")   // Purple
	secondary := lipgloss.Color("#06B6D4") // Cyan
	success := lipgloss.Color("#22C55E")   // Green
	warning := lipgloss.Color("#EAB308")   // Yellow
	errorC := lipgloss.Color("#EF4444")    // Red
	muted := lipgloss.Color("#6B7280")     // Gray
	text := lipgloss.Color("#F9FAFB")
	textDim := lipgloss.Color("#9CA3AF")

	return Theme{
		Primary:   primary,
		Secondary: secondary,
		Success:   success,
		Warning:   warning,
		Error:     errorC,
		Muted:     muted,
		Text:      text,
		TextDim:   textDim,

		Border: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		Title:      r.NewStyle().Bold(true).Foreground(text),
		TitleMuted: r.NewStyle().Foreground(textDim),
		Keybind:    r.NewStyle().Foreground(textDim),
		KeybindKey: r.NewStyle().Bold(true).Foreground(secondary),
		EventOK:    r.NewStyle().Foreground(success),
		EventWarn:  r.NewStyle().Foreground(warning),
		EventError: r.NewStyle().Foreground(errorC),
		Timestamp:  r.NewStyle().Foreground(textDim),
	}
}

// LevelStyle picks the event style for a level. Only errors are red; every
// other level prints green like a regular progress line.
func (t Theme) LevelStyle(level string) lipgloss.Style {
	if level == "ERROR" {
		return t.EventError
	}
	return t.EventOK
}

var DefaultStyles = DefaultTheme()
