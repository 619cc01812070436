package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
)

// Footer is a rule followed by keybind hints and an optional right-hand note.
type Footer struct {
	Keybinds []Keybind
	Note     string
	Width    int
	theme    styles.Theme
}

func NewFooter(keybinds []Keybind) Footer {
	return Footer{
		Keybinds: keybinds,
		theme:    styles.DefaultTheme(),
	}
}

func (f Footer) WithWidth(w int) Footer {
	f.Width = w
	return f
}

func (f Footer) WithNote(note string) Footer {
	f.Note = note
	return f
}

func (f Footer) Render() string {
	left := RenderKeybinds(f.Keybinds, f.theme)
	line := left
	if f.Note != "" {
		spacing := f.Width - lipgloss.Width(left) - lipgloss.Width(f.Note)
		if spacing < 2 {
			spacing = 2
		}
		line = lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(spacing).Render(""), f.Note)
	}
	return lipgloss.JoinVertical(lipgloss.Left, Rule(f.Width, f.theme), line)
}
