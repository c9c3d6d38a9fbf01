package instrument

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/gcode"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/tracker"
)

// DefaultClearance is the height above a well's bottom used for liquid handling.
const DefaultClearance = 1.0

// Config describes one pipette.
type Config struct {
	Name     string
	Mount    string
	Channels int
	// MaxVolume in µL.
	MaxVolume float64
	// TipRacks are scanned in order for fresh tips.
	TipRacks []*domain.Labware
	// StartingTip restricts the first scan (see tracker.NextAvailableTip).
	StartingTip *domain.Well
	// Trash is where tips go when DropTip has no target. Usually the fixed trash.
	Trash domain.Target

	// Flow rates in µL/s. Zero selects a default derived from MaxVolume.
	AspirateRate float64
	DispenseRate float64
	BlowOutRate  float64

	// Clearances above the well bottom, in mm. Zero selects DefaultClearance.
	AspirateClearance float64
	DispenseClearance float64
}

// Pipette is the per-instrument state machine: NoTip -> TipHeld -> NoTip.
// At most one action is in flight at a time.
type Pipette struct {
	ctx  *Context
	cfg  Config
	busy atomic.Bool

	tip    *domain.Well // where the held tip came from; nil when untracked
	hasTip bool
	volume float64
	last   *domain.Location // last resolved location
}

func newPipette(c *Context, cfg Config) (*Pipette, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("pipette name is required")
	}
	if cfg.MaxVolume <= 0 {
		return nil, fmt.Errorf("pipette %s: max volume must be positive", cfg.Name)
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.Channels != 1 && cfg.Channels != 8 {
		return nil, fmt.Errorf("pipette %s: unsupported channel count %d", cfg.Name, cfg.Channels)
	}
	if cfg.AspirateRate <= 0 {
		cfg.AspirateRate = cfg.MaxVolume / 2
	}
	if cfg.DispenseRate <= 0 {
		cfg.DispenseRate = cfg.MaxVolume
	}
	if cfg.BlowOutRate <= 0 {
		cfg.BlowOutRate = cfg.MaxVolume
	}
	if cfg.AspirateClearance <= 0 {
		cfg.AspirateClearance = DefaultClearance
	}
	if cfg.DispenseClearance <= 0 {
		cfg.DispenseClearance = DefaultClearance
	}
	return &Pipette{ctx: c, cfg: cfg}, nil
}

// Name returns the configured name.
func (p *Pipette) Name() string { return p.cfg.Name }

// Config returns the effective configuration, defaults applied.
func (p *Pipette) Config() Config { return p.cfg }

// HasTip reports whether a tip is attached.
func (p *Pipette) HasTip() bool { return p.hasTip }

// CurrentVolume returns the volume held in the tip, in µL.
func (p *Pipette) CurrentVolume() float64 { return p.volume }

// begin claims the instrument for one action.
func (p *Pipette) begin() (func(), error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstrumentBusy, p.cfg.Name)
	}
	return func() { p.busy.Store(false) }, nil
}

func (p *Pipette) remember(loc domain.Location) {
	p.last = &loc
}

func (p *Pipette) tipLength(w *domain.Well) float64 {
	if w != nil && w.Labware() != nil && w.Labware().TipLength > 0 {
		return w.Labware().TipLength
	}
	for _, rack := range p.cfg.TipRacks {
		if rack.TipLength > 0 {
			return rack.TipLength
		}
	}
	return 0
}

// PickUpTip attaches a tip. A nil target takes the next available tip from the
// configured racks; a tip rack takes its next available tip; a well or a well
// location takes that tip. A bare location is picked from without bookkeeping.
func (p *Pipette) PickUpTip(ctx context.Context, target domain.Target) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()
	return p.pickUpTip(ctx, target)
}

func (p *Pipette) pickUpTip(ctx context.Context, target domain.Target) error {
	if p.hasTip {
		return fmt.Errorf("%w: %s already has a tip attached", domain.ErrTipPickUp, p.cfg.Name)
	}

	deck := p.ctx.deck
	var loc domain.Location
	physical := func(w *domain.Well) error {
		var err error
		if explicit, ok := target.(domain.Location); ok {
			loc = explicit
		} else if loc, err = deck.Resolve(w, tracker.Top(0)); err != nil {
			return err
		}
		if err := p.ctx.hw.MoveTo(ctx, loc, ports.MoveOptions{}); err != nil {
			return err
		}
		return p.ctx.hw.PickUpTip(ctx, loc, p.tipLength(w))
	}

	var well *domain.Well
	switch v := target.(type) {
	case nil:
		claimed, err := deck.ClaimTip(p.cfg.StartingTip, p.cfg.TipRacks, p.cfg.Channels, physical)
		if err != nil {
			return err
		}
		return p.tipAttached(claimed, loc)
	case *domain.Labware:
		claimed, err := deck.ClaimTip(nil, []*domain.Labware{v}, p.cfg.Channels, physical)
		if err != nil {
			return err
		}
		return p.tipAttached(claimed, loc)
	case *domain.Well:
		well = v
	case domain.Location:
		if v.Well == nil {
			if err := physical(nil); err != nil {
				return err
			}
			return p.tipAttached(nil, loc)
		}
		if _, err := deck.Resolve(v, tracker.Top(0)); err != nil {
			return err
		}
		well = v.Well
	default:
		return fmt.Errorf("%w: cannot pick up a tip from %T", domain.ErrLabwareGeometry, target)
	}

	if err := deck.ClaimWell(well, p.cfg.Channels, physical); err != nil {
		return err
	}
	return p.tipAttached(well, loc)
}

func (p *Pipette) tipAttached(well *domain.Well, loc domain.Location) error {
	p.hasTip = true
	p.tip = well
	p.volume = 0
	p.remember(loc)
	p.ctx.publish(domain.ActionPickUpTip, "Picking up tip from "+loc.String(), domain.CommandParams{Location: loc.String()})
	return nil
}

// DropTip ejects the tip. A nil target drops into the configured trash. Dropping
// into a tip-rack well puts the tip back in that well's bookkeeping.
func (p *Pipette) DropTip(ctx context.Context, target domain.Target) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()
	return p.dropTip(ctx, target)
}

func (p *Pipette) trashLocation() (domain.Location, error) {
	switch v := p.cfg.Trash.(type) {
	case nil:
		return domain.Location{}, fmt.Errorf("%w: %s has no trash configured", domain.ErrNoLocation, p.cfg.Name)
	case *domain.Labware:
		wells := v.Wells()
		if len(wells) == 0 {
			return v.Top(0)
		}
		return p.ctx.deck.Resolve(wells[0], tracker.Top(0))
	default:
		return p.ctx.deck.Resolve(v, tracker.Top(0))
	}
}

func (p *Pipette) dropTip(ctx context.Context, target domain.Target) error {
	if !p.hasTip {
		return fmt.Errorf("%w: %s cannot drop a tip it does not hold", domain.ErrNoTip, p.cfg.Name)
	}

	var (
		loc domain.Location
		err error
	)
	if target == nil {
		loc, err = p.trashLocation()
	} else {
		loc, err = p.ctx.deck.Resolve(target, tracker.Top(0))
	}
	if err != nil {
		return err
	}

	physical := func() error {
		if err := p.ctx.hw.MoveTo(ctx, loc, ports.MoveOptions{}); err != nil {
			return err
		}
		return p.ctx.hw.DropTip(ctx, loc)
	}
	if well, ok := tracker.IsTipRackWell(loc); ok {
		err = p.ctx.deck.ReturnTip(well, p.cfg.Channels, physical)
	} else {
		err = physical()
	}
	if err != nil {
		return err
	}

	p.tipDetached(loc)
	p.ctx.publish(domain.ActionDropTip, "Dropping tip into "+loc.String(), domain.CommandParams{Location: loc.String()})
	return nil
}

func (p *Pipette) tipDetached(loc domain.Location) {
	p.hasTip = false
	p.tip = nil
	p.volume = 0
	p.remember(loc)
}

// ReturnTip puts the held tip back where it was picked up from.
func (p *Pipette) ReturnTip(ctx context.Context) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()

	if !p.hasTip {
		return fmt.Errorf("%w: %s has no tip to return", domain.ErrNoTip, p.cfg.Name)
	}
	if p.tip == nil {
		return fmt.Errorf("%w: %s does not know where its tip came from", domain.ErrNoLocation, p.cfg.Name)
	}
	well := p.tip
	loc, err := p.ctx.deck.Resolve(well, tracker.Top(0))
	if err != nil {
		return err
	}
	err = p.ctx.deck.ReturnTip(well, p.cfg.Channels, func() error {
		if err := p.ctx.hw.MoveTo(ctx, loc, ports.MoveOptions{}); err != nil {
			return err
		}
		return p.ctx.hw.DropTip(ctx, loc)
	})
	if err != nil {
		return err
	}
	p.tipDetached(loc)
	p.ctx.publish(domain.ActionReturnTip, "Returning tip to "+loc.String(), domain.CommandParams{Location: loc.String()})
	return nil
}

// liquidLocation resolves the target of aspirate and dispense. nil reuses the
// last location.
func (p *Pipette) liquidLocation(target domain.Target, clearance float64) (domain.Location, bool, error) {
	if target == nil {
		if p.last == nil {
			return domain.Location{}, false, fmt.Errorf("%w: %s has no previous location", domain.ErrNoLocation, p.cfg.Name)
		}
		return *p.last, false, nil
	}
	loc, err := p.ctx.deck.Resolve(target, tracker.Bottom(clearance))
	return loc, true, err
}

func (p *Pipette) checkVolume(volume float64) error {
	if volume <= 0 {
		return fmt.Errorf("%w: volume must be positive, got %s", domain.ErrInvalidVolume, FormatQuantity(volume))
	}
	if volume > p.cfg.MaxVolume {
		return fmt.Errorf("%w: %s uL exceeds the %s uL maximum of %s", domain.ErrInvalidVolume,
			FormatQuantity(volume), FormatQuantity(p.cfg.MaxVolume), p.cfg.Name)
	}
	return nil
}

// Aspirate draws volume µL at target. A zero rate uses the configured aspirate rate.
func (p *Pipette) Aspirate(ctx context.Context, volume float64, target domain.Target, rate float64) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()
	return p.aspirate(ctx, volume, target, rate)
}

func (p *Pipette) aspirate(ctx context.Context, volume float64, target domain.Target, rate float64) error {
	if !p.hasTip {
		return fmt.Errorf("%w: %s cannot aspirate without a tip", domain.ErrNoTip, p.cfg.Name)
	}
	if err := p.checkVolume(volume); err != nil {
		return err
	}
	if p.volume+volume > p.cfg.MaxVolume {
		return fmt.Errorf("%w: %s holds %s uL, cannot take %s uL more", domain.ErrInvalidVolume,
			p.cfg.Name, FormatQuantity(p.volume), FormatQuantity(volume))
	}
	if rate <= 0 {
		rate = p.cfg.AspirateRate
	}
	loc, move, err := p.liquidLocation(target, p.cfg.AspirateClearance)
	if err != nil {
		return err
	}

	if move {
		if err := p.ctx.hw.MoveTo(ctx, loc, ports.MoveOptions{}); err != nil {
			return err
		}
	}
	if err := p.ctx.hw.Aspirate(ctx, volume, loc, rate); err != nil {
		return err
	}
	if move {
		p.remember(loc)
	}
	p.volume += volume
	p.ctx.publish(domain.ActionAspirate,
		fmt.Sprintf("Aspirating %s uL from %s at %s uL/sec", FormatQuantity(volume), loc, FormatQuantity(rate)),
		domain.CommandParams{Volume: volume, Rate: rate, Location: loc.String()})
	return nil
}

// Dispense expels volume µL at target. A zero rate uses the configured dispense rate.
func (p *Pipette) Dispense(ctx context.Context, volume float64, target domain.Target, rate float64) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()
	return p.dispense(ctx, volume, target, rate)
}

func (p *Pipette) dispense(ctx context.Context, volume float64, target domain.Target, rate float64) error {
	if !p.hasTip {
		return fmt.Errorf("%w: %s cannot dispense without a tip", domain.ErrNoTip, p.cfg.Name)
	}
	if err := p.checkVolume(volume); err != nil {
		return err
	}
	if volume > p.volume {
		return fmt.Errorf("%w: %s holds only %s uL, cannot dispense %s uL", domain.ErrInvalidVolume,
			p.cfg.Name, FormatQuantity(p.volume), FormatQuantity(volume))
	}
	if rate <= 0 {
		rate = p.cfg.DispenseRate
	}
	loc, move, err := p.liquidLocation(target, p.cfg.DispenseClearance)
	if err != nil {
		return err
	}

	if move {
		if err := p.ctx.hw.MoveTo(ctx, loc, ports.MoveOptions{}); err != nil {
			return err
		}
	}
	if err := p.ctx.hw.Dispense(ctx, volume, loc, rate); err != nil {
		return err
	}
	if move {
		p.remember(loc)
	}
	p.volume -= volume
	p.ctx.publish(domain.ActionDispense,
		fmt.Sprintf("Dispensing %s uL into %s at %s uL/sec", FormatQuantity(volume), loc, FormatQuantity(rate)),
		domain.CommandParams{Volume: volume, Rate: rate, Location: loc.String()})
	return nil
}

// BlowOut expels residual liquid at the top of target, or at the last location.
func (p *Pipette) BlowOut(ctx context.Context, target domain.Target) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()
	return p.blowOut(ctx, target)
}

func (p *Pipette) blowOut(ctx context.Context, target domain.Target) error {
	if !p.hasTip {
		return fmt.Errorf("%w: %s cannot blow out without a tip", domain.ErrNoTip, p.cfg.Name)
	}
	var loc domain.Location
	if target == nil {
		if p.last == nil {
			return fmt.Errorf("%w: %s has no previous location", domain.ErrNoLocation, p.cfg.Name)
		}
		loc = *p.last
	} else {
		var err error
		if loc, err = p.ctx.deck.Resolve(target, tracker.Top(0)); err != nil {
			return err
		}
		if err := p.ctx.hw.MoveTo(ctx, loc, ports.MoveOptions{}); err != nil {
			return err
		}
		p.remember(loc)
	}
	if err := p.ctx.hw.BlowOut(ctx, loc); err != nil {
		return err
	}
	p.volume = 0
	p.ctx.publish(domain.ActionBlowOut, "Blowing out at "+loc.String(), domain.CommandParams{Rate: p.cfg.BlowOutRate, Location: loc.String()})
	return nil
}

// TouchTip touches the tip against the four sides of well, 1 mm below its top.
// A nil well uses the well of the last location.
func (p *Pipette) TouchTip(ctx context.Context, well *domain.Well) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()
	return p.touchTip(ctx, well)
}

func (p *Pipette) touchTip(ctx context.Context, well *domain.Well) error {
	if !p.hasTip {
		return fmt.Errorf("%w: %s cannot touch tip without a tip", domain.ErrNoTip, p.cfg.Name)
	}
	if well == nil {
		if p.last == nil || p.last.Well == nil {
			return fmt.Errorf("%w: %s has no previous well to touch", domain.ErrNoLocation, p.cfg.Name)
		}
		well = p.last.Well
	}
	center, err := well.Top(-1)
	if err != nil {
		return err
	}
	rx, ry, err := well.Radii()
	if err != nil {
		return err
	}

	path := []domain.Location{
		center,
		center.Move(domain.Point{X: rx}),
		center.Move(domain.Point{X: -rx}),
		center.Move(domain.Point{Y: ry}),
		center.Move(domain.Point{Y: -ry}),
		center,
	}
	for i, loc := range path {
		opts := ports.MoveOptions{ForceDirect: i > 0, Speed: 60}
		if err := p.ctx.hw.MoveTo(ctx, loc, opts); err != nil {
			return err
		}
	}
	p.remember(center)
	p.ctx.publish(domain.ActionTouchTip, "Touching tip", domain.CommandParams{Location: center.String()})
	return nil
}

// MoveTo moves to target (the top of a well or labware, or a concrete location).
func (p *Pipette) MoveTo(ctx context.Context, target domain.Target, opts ports.MoveOptions) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()

	loc, err := p.ctx.deck.Resolve(target, tracker.Top(0))
	if err != nil {
		return err
	}
	if err := p.ctx.hw.MoveTo(ctx, loc, opts); err != nil {
		return err
	}
	p.remember(loc)
	p.ctx.publish(domain.ActionMoveTo, "Moving to "+loc.String(), domain.CommandParams{Speed: opts.Speed, Location: loc.String()})
	return nil
}

// Probe moves the given axes toward their targets until contact. The record
// text is the explanation of the equivalent probe instruction.
func (p *Pipette) Probe(ctx context.Context, axes map[string]float64, speed float64) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()

	if spec, ok := gcode.Lookup(gcode.Probe); ok {
		if _, found := axes[spec.Rate]; found {
			return &domain.InstructionError{Reason: fmt.Sprintf("%s is the probe speed, not an axis", spec.Rate)}
		}
	}
	args := make(map[string]string, len(axes)+1)
	for axis, v := range axes {
		args[axis] = gcode.FormatNumber(v)
	}
	if speed > 0 {
		args["F"] = gcode.FormatNumber(speed)
	}
	text, err := gcode.Explain(gcode.Probe, args)
	if err != nil {
		return err
	}
	if err := p.ctx.hw.Probe(ctx, maps.Clone(axes), speed); err != nil {
		return err
	}
	p.ctx.publish(domain.ActionProbe, text, domain.CommandParams{Speed: speed})
	return nil
}
