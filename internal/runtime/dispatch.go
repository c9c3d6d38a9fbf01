package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/instrument"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/protocol"
)

func (s *session) pipette(a protocol.Action) (*instrument.Pipette, error) {
	p, ok := s.ctx.Pipette(a.Pipette)
	if !ok {
		return nil, fmt.Errorf("unknown pipette %q", a.Pipette)
	}
	return p, nil
}

func (s *session) dispatch(ctx context.Context, a protocol.Action) error {
	params, err := a.Decode()
	if err != nil {
		return err
	}

	switch v := params.(type) {
	case *protocol.DelayParams:
		d := time.Duration((v.Minutes*60 + v.Seconds) * float64(time.Second))
		return s.ctx.Delay(ctx, d)
	case *protocol.CommentParams:
		s.ctx.Comment(v.Message)
		return nil
	}

	pip, err := s.pipette(a)
	if err != nil {
		return err
	}

	switch v := params.(type) {
	case *protocol.TipParams:
		target, err := s.target(v.TargetRef)
		if err != nil {
			return err
		}
		if a.Kind == string(domain.ActionDropTip) {
			return pip.DropTip(ctx, target)
		}
		return pip.PickUpTip(ctx, target)

	case *protocol.ReturnTipParams:
		return pip.ReturnTip(ctx)

	case *protocol.LiquidParams:
		target, err := s.target(v.TargetRef)
		if err != nil {
			return err
		}
		if a.Kind == string(domain.ActionDispense) {
			return pip.Dispense(ctx, v.Volume, target, v.Rate)
		}
		return pip.Aspirate(ctx, v.Volume, target, v.Rate)

	case *protocol.TargetParams:
		if a.Kind == string(domain.ActionTouchTip) {
			var well *domain.Well
			if v.Labware != "" {
				if v.Well == "" {
					return fmt.Errorf("%w: touch_tip on %s needs a well", domain.ErrNoLocation, v.Labware)
				}
				if well, err = s.well(protocol.WellRef{Labware: v.Labware, Well: v.Well}); err != nil {
					return err
				}
			}
			return pip.TouchTip(ctx, well)
		}
		target, err := s.target(v.TargetRef)
		if err != nil {
			return err
		}
		return pip.BlowOut(ctx, target)

	case *protocol.MoveParams:
		target, err := s.target(v.TargetRef)
		if err != nil {
			return err
		}
		return pip.MoveTo(ctx, target, ports.MoveOptions{
			Speed:          v.Speed,
			ForceDirect:    v.ForceDirect,
			MinimumZHeight: v.MinimumZHeight,
		})

	case *protocol.ProbeParams:
		axes := make(map[string]float64, len(v.Axes))
		for axis, value := range v.Axes {
			axes[strings.ToUpper(axis)] = value
		}
		return pip.Probe(ctx, axes, v.Speed)

	case *protocol.TransferParams:
		src, err := s.well(v.Source)
		if err != nil {
			return err
		}
		dst, err := s.well(v.Destination)
		if err != nil {
			return err
		}
		return pip.Transfer(ctx, v.Volume, src, dst, instrument.TransferOptions{
			NewTip:       v.NewTip,
			KeepTip:      v.KeepTip,
			BlowOut:      v.BlowOut,
			TouchTip:     v.TouchTip,
			AspirateRate: v.AspirateRate,
			DispenseRate: v.DispenseRate,
		})
	}
	return fmt.Errorf("unhandled action kind %q", a.Kind)
}
