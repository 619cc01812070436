package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
)

// Box is a rounded panel whose first inner line carries a title on the left
// and a hint on the right.
type Box struct {
	Title   string
	Hint    string
	Content string
	Width   int
	Height  int
	theme   styles.Theme
}

func NewBox(title string) Box {
	return Box{Title: title, theme: styles.DefaultTheme()}
}

func (b Box) WithContent(content string) Box {
	b.Content = content
	return b
}

func (b Box) WithHint(hint string) Box {
	b.Hint = hint
	return b
}

func (b Box) WithSize(width, height int) Box {
	b.Width = width
	b.Height = height
	return b
}

func (b Box) Render() string {
	inner := b.Width - 2
	if inner < 0 {
		inner = 0
	}

	body := b.Content
	if b.Title != "" || b.Hint != "" {
		left := b.theme.Title.Render(b.Title)
		right := b.theme.TitleMuted.Render(b.Hint)
		gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
		body = left + strings.Repeat(" ", gap) + right + "\n" + body
	}

	style := b.theme.Border
	if b.Width > 0 {
		style = style.Width(inner)
	}
	if b.Height > 2 {
		style = style.Height(b.Height - 2)
	}
	return style.Render(body)
}
