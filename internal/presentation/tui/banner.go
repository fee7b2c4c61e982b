package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tripvoice banner. Colours follow the terminal profile
// and degrade to plain text when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{" _        _              _          ", "#38bdf8"},
		{"| |_ _ __(_)_ ____   __ ___ (_) ___ ___ ", "#22d3ee"},
		{"| __| '__| | '_ \\ \\ / // _ \\| |/ __/ _ \\", "#2dd4bf"},
		{"| |_| |  | | |_) \\ V /| (_) | | (_|  __/", "#34d399"},
		{" \\__|_|  |_| .__/ \\_/  \\___/|_|\\___\\___|", "#4ade80"},
		{"           |_|                          ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  voice trip planner "+version).Faint())
	fmt.Fprintln(w)
}
