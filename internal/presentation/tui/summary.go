package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// Summary renders a finished run as markdown.
func Summary(rec *domain.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rec.Protocol)
	fmt.Fprintf(&b, "- **Run**: `%s`\n", rec.ID)
	fmt.Fprintf(&b, "- **API version**: %s\n", rec.APIVersion)
	fmt.Fprintf(&b, "- **Status**: %s\n", rec.Status)
	fmt.Fprintf(&b, "- **Records**: %d\n", len(rec.Log))
	if !rec.StartedAt.IsZero() && !rec.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "- **Duration**: %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(1e6))
	}

	counts := make(map[domain.ActionKind]int)
	var volume float64
	for _, r := range rec.Log {
		counts[r.Kind]++
		if r.Kind == domain.ActionAspirate {
			volume += r.Params.Volume
		}
	}
	if len(counts) > 0 {
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		b.WriteString("\n| Action | Count |\n|---|---|\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "| %s | %d |\n", k, counts[domain.ActionKind(k)])
		}
		if volume > 0 {
			fmt.Fprintf(&b, "\nAspirated %.1f µL in total.\n", volume)
		}
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "\n> **Error**: %s\n", rec.Error)
	}
	return b.String()
}

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	return func(markdown string) (string, error) {
		if err != nil {
			return markdown, err
		}
		return r.Render(markdown)
	}
}

// PrintSummary writes the run summary to w, styled when w is a terminal.
func PrintSummary(w io.Writer, rec *domain.RunRecord) error {
	md := Summary(rec)
	if !IsTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}
	out, err := NewRenderer()(md)
	if err != nil {
		out = md
	}
	_, err = io.WriteString(w, out)
	return err
}
