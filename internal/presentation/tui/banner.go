package tui

import (
	"fmt"
	"io"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`        _            _   _       `, "#34d399"},
	{`  _ __ (_)_ __   ___| |_| |_ ___ `, "#2dd4bf"},
	{` | '_ \| | '_ \ / _ \ __| __/ _ \`, "#22d3ee"},
	{` | |_) | | |_) |  __/ |_| ||  __/`, "#38bdf8"},
	{` | .__/|_| .__/ \___|\__|\__\___|`, "#60a5fa"},
	{` |_|     |_|                     `, "#818cf8"},
}

// PrintBanner writes the coloured banner to w. Colours degrade with the
// terminal's profile and vanish when w is not a terminal.
func PrintBanner(w io.Writer) {
	p := profileFor(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, p.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w)
}
