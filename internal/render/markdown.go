package render

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// maxReadableWidth caps word wrap on wide terminals.
const maxReadableWidth = 100

// TerminalWidth returns the width of stdout, capped for readability, or 80
// when stdout is not a terminal.
func TerminalWidth() int {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	if width > maxReadableWidth {
		width = maxReadableWidth
	}
	return width
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Markdown renders markdown with glamour. The raw text is returned when
// rendering fails or styling is disabled.
func Markdown(markdown string, width int, styled bool) string {
	if !styled {
		return markdown
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}
