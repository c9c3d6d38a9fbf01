package instrument

import (
	"context"
	"fmt"
	"math"

	"github.com/aretw0/pipette/pkg/domain"
)

// Tip policies for Transfer.
const (
	NewTipOnce   = "once"
	NewTipAlways = "always"
	NewTipNever  = "never"
)

// TransferOptions tunes Transfer.
type TransferOptions struct {
	// NewTip is one of NewTipOnce (default), NewTipAlways or NewTipNever.
	NewTip string
	// KeepTip leaves the last tip attached instead of dropping it in the trash.
	KeepTip bool
	// BlowOut blows out above the destination after every dispense.
	BlowOut bool
	// TouchTip touches the tip on the destination well after every dispense.
	TouchTip bool
	// AspirateRate and DispenseRate override the pipette's rates when positive.
	AspirateRate float64
	DispenseRate float64
}

// Transfer moves volume µL from src to dst. Volumes above the pipette maximum
// are split into equal chunks. Only primitive actions are recorded; there is no
// record for the transfer itself.
func (p *Pipette) Transfer(ctx context.Context, volume float64, src, dst *domain.Well, opts TransferOptions) error {
	end, err := p.begin()
	if err != nil {
		return err
	}
	defer end()

	if volume <= 0 {
		return fmt.Errorf("%w: volume must be positive, got %s", domain.ErrInvalidVolume, FormatQuantity(volume))
	}
	if src == nil || dst == nil {
		return fmt.Errorf("%w: transfer needs a source and a destination", domain.ErrNoLocation)
	}
	policy := opts.NewTip
	if policy == "" {
		policy = NewTipOnce
	}
	switch policy {
	case NewTipOnce, NewTipAlways, NewTipNever:
	default:
		return fmt.Errorf("unknown new tip policy %q", opts.NewTip)
	}
	if policy == NewTipNever && !p.hasTip {
		return fmt.Errorf("%w: %s needs a tip for a transfer without new tips", domain.ErrNoTip, p.cfg.Name)
	}

	chunks := int(math.Ceil(volume / p.cfg.MaxVolume))
	each := volume / float64(chunks)

	for i := 0; i < chunks; i++ {
		if policy == NewTipAlways && p.hasTip {
			if err := p.dropTip(ctx, nil); err != nil {
				return err
			}
		}
		if !p.hasTip {
			if err := p.pickUpTip(ctx, nil); err != nil {
				return err
			}
		}
		if err := p.aspirate(ctx, each, src, opts.AspirateRate); err != nil {
			return err
		}
		if err := p.dispense(ctx, each, dst, opts.DispenseRate); err != nil {
			return err
		}
		if opts.BlowOut {
			if err := p.blowOut(ctx, dst); err != nil {
				return err
			}
		}
		if opts.TouchTip {
			if err := p.touchTip(ctx, dst); err != nil {
				return err
			}
		}
	}

	if policy != NewTipNever && !opts.KeepTip {
		return p.dropTip(ctx, nil)
	}
	return nil
}
