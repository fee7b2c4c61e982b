package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer with the background style detected
// from the terminal. When styled is false, or glamour cannot start, markdown
// passes through unchanged.
func NewRenderer(styled bool, width int) Renderer {
	if !styled {
		return plain
	}
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return plain
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

func plain(markdown string) (string, error) {
	return strings.TrimRight(markdown, "\n") + "\n", nil
}
