// Package simulated provides a Hardware implementation that performs no physical
// effect. It records every call, never sleeps, and fails only when told to.
package simulated

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/ports"
)

// Method names as they appear in Call.Method and FailOn.
const (
	MethodMoveTo    = "MoveTo"
	MethodAspirate  = "Aspirate"
	MethodDispense  = "Dispense"
	MethodPickUpTip = "PickUpTip"
	MethodDropTip   = "DropTip"
	MethodBlowOut   = "BlowOut"
	MethodProbe     = "Probe"
	MethodDelay     = "Delay"
)

// Call is one recorded invocation.
type Call struct {
	Method    string
	Location  domain.Location
	Options   ports.MoveOptions
	Volume    float64
	Rate      float64
	TipLength float64
	Axes      map[string]float64
	Speed     float64
	Duration  time.Duration
	Err       error
}

type fault struct {
	method string // empty for index-based faults
	nth    int
	err    error
}

// Hardware is a simulated robot. The zero value is not usable; call New.
type Hardware struct {
	mu     sync.Mutex
	calls  []Call
	counts map[string]int
	faults []fault
	logger *slog.Logger
}

var _ ports.Hardware = (*Hardware)(nil)

// Option configures the simulator.
type Option func(*Hardware)

// WithLogger sets the logger used to trace calls at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hardware) {
		h.logger = logger
	}
}

// New creates a simulator with no injected faults.
func New(opts ...Option) *Hardware {
	h := &Hardware{
		counts: make(map[string]int),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FailOn makes the nth (1-based) call to method return err.
func (h *Hardware) FailOn(method string, nth int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults = append(h.faults, fault{method: method, nth: nth, err: err})
}

// FailAt makes the call at overall position index (1-based) return err,
// whatever its method.
func (h *Hardware) FailAt(index int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults = append(h.faults, fault{nth: index, err: err})
}

// Calls returns a copy of every call recorded so far, failed ones included.
func (h *Hardware) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// Methods returns the method names of the recorded calls, in order.
func (h *Hardware) Methods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	for i, c := range h.calls {
		out[i] = c.Method
	}
	return out
}

func (h *Hardware) record(c Call) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[c.Method]++
	index := len(h.calls) + 1
	for _, f := range h.faults {
		if (f.method == "" && f.nth == index) || (f.method == c.Method && f.nth == h.counts[c.Method]) {
			c.Err = f.err
			break
		}
	}
	h.calls = append(h.calls, c)
	h.logger.Debug("simulated hardware call", "method", c.Method, "index", index, "location", c.Location.String(), "err", c.Err)
	return c.Err
}

func (h *Hardware) MoveTo(_ context.Context, loc domain.Location, opts ports.MoveOptions) error {
	return h.record(Call{Method: MethodMoveTo, Location: loc, Options: opts, Speed: opts.Speed})
}

func (h *Hardware) Aspirate(_ context.Context, volume float64, loc domain.Location, rate float64) error {
	return h.record(Call{Method: MethodAspirate, Location: loc, Volume: volume, Rate: rate})
}

func (h *Hardware) Dispense(_ context.Context, volume float64, loc domain.Location, rate float64) error {
	return h.record(Call{Method: MethodDispense, Location: loc, Volume: volume, Rate: rate})
}

func (h *Hardware) PickUpTip(_ context.Context, loc domain.Location, tipLength float64) error {
	return h.record(Call{Method: MethodPickUpTip, Location: loc, TipLength: tipLength})
}

func (h *Hardware) DropTip(_ context.Context, loc domain.Location) error {
	return h.record(Call{Method: MethodDropTip, Location: loc})
}

func (h *Hardware) BlowOut(_ context.Context, loc domain.Location) error {
	return h.record(Call{Method: MethodBlowOut, Location: loc})
}

func (h *Hardware) Probe(_ context.Context, axes map[string]float64, speed float64) error {
	return h.record(Call{Method: MethodProbe, Axes: maps.Clone(axes), Speed: speed})
}

// Delay returns immediately; the requested duration is only recorded.
func (h *Hardware) Delay(_ context.Context, d time.Duration) error {
	return h.record(Call{Method: MethodDelay, Duration: d})
}
