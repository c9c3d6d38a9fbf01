// Package tui renders runs for humans: a banner, a live run log printer and a
// markdown summary.
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func profileFor(w io.Writer) termenv.Profile {
	if !IsTerminal(w) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// Printer streams run log records as they are published.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	profile termenv.Profile
	json    bool
	n       int
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithJSON prints one JSON object per record (NDJSON) instead of text.
func WithJSON(enabled bool) PrinterOption {
	return func(p *Printer) {
		p.json = enabled
	}
}

// WithProfile forces a colour profile.
func WithProfile(profile termenv.Profile) PrinterOption {
	return func(p *Printer) {
		p.profile = profile
	}
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{w: w, profile: profileFor(w)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print writes one record.
func (p *Printer) Print(rec domain.CommandRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++

	if p.json {
		data, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(p.w, "{\"error\":%q}\n", err.Error())
			return
		}
		fmt.Fprintln(p.w, string(data))
		return
	}

	index := p.profile.String(fmt.Sprintf("%4d.", p.n)).Foreground(p.profile.Color("#6b7280"))
	text := p.profile.String(rec.Text).Foreground(p.profile.Color(kindColor(rec.Kind)))
	fmt.Fprintf(p.w, "%s %s\n", index, text)
}

// Subscriber adapts the printer to a broker subscription.
func (p *Printer) Subscriber() broker.Subscriber {
	return p.Print
}

// Count returns how many records were printed.
func (p *Printer) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func kindColor(kind domain.ActionKind) string {
	switch kind {
	case domain.ActionAspirate, domain.ActionDispense, domain.ActionBlowOut:
		return "#38bdf8"
	case domain.ActionPickUpTip, domain.ActionDropTip, domain.ActionReturnTip:
		return "#a78bfa"
	case domain.ActionComment:
		return "#9ca3af"
	default:
		return "#e5e7eb"
	}
}
