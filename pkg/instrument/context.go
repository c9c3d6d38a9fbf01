// Package instrument turns protocol-level actions into hardware calls plus
// exactly one published run log record per physical action.
//
// A Context binds one Hardware, one deck Tracker and one Broker for the
// duration of a protocol execution; pipettes are loaded from it.
package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/tracker"
)

// Context is the protocol-wide dispatcher.
type Context struct {
	hw       ports.Hardware
	deck     *tracker.Tracker
	broker   *broker.Broker
	logger   *slog.Logger
	pipettes map[string]*Pipette
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used to trace dispatched actions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// New creates a dispatcher context.
func New(hw ports.Hardware, deck *tracker.Tracker, b *broker.Broker, opts ...Option) *Context {
	c := &Context{
		hw:       hw,
		deck:     deck,
		broker:   b,
		logger:   logging.NewNop(),
		pipettes: make(map[string]*Pipette),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deck returns the tracker backing this context.
func (c *Context) Deck() *tracker.Tracker { return c.deck }

// Broker returns the broker receiving the run log.
func (c *Context) Broker() *broker.Broker { return c.broker }

// LoadPipette creates a pipette bound to this context. Names must be unique.
func (c *Context) LoadPipette(cfg Config) (*Pipette, error) {
	if _, dup := c.pipettes[cfg.Name]; dup {
		return nil, fmt.Errorf("pipette %q already loaded", cfg.Name)
	}
	p, err := newPipette(c, cfg)
	if err != nil {
		return nil, err
	}
	c.pipettes[cfg.Name] = p
	return p, nil
}

// Pipette returns a loaded pipette by name.
func (c *Context) Pipette(name string) (*Pipette, bool) {
	p, ok := c.pipettes[name]
	return p, ok
}

func (c *Context) publish(kind domain.ActionKind, text string, params domain.CommandParams) {
	rec := c.broker.Publish(domain.CommandRecord{Kind: kind, Text: text, Params: params})
	c.logger.Debug("action published", "kind", string(kind), "id", rec.ID, "text", text)
}

// Delay pauses the robot for d and publishes one record.
func (c *Context) Delay(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("delay must not be negative, got %s", d)
	}
	if err := c.hw.Delay(ctx, d); err != nil {
		return err
	}
	total := d.Seconds()
	minutes := math.Floor(total / 60)
	seconds := total - minutes*60
	c.publish(domain.ActionDelay,
		fmt.Sprintf("Delaying for %d minutes and %s seconds", int(minutes), FormatQuantity(seconds)),
		domain.CommandParams{Seconds: total})
	return nil
}

// Comment publishes a free-text record. No hardware is involved.
func (c *Context) Comment(msg string) {
	c.publish(domain.ActionComment, msg, domain.CommandParams{})
}
