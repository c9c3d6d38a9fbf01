package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/pipette/pkg/adapters/builtin"
	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/instrument"
	"github.com/aretw0/pipette/pkg/protocol"
	"github.com/aretw0/pipette/pkg/tracker"
)

// session is the per-run state: the laid-out deck and the loaded pipettes.
type session struct {
	ctx     *instrument.Context
	labware map[string]*domain.Labware
}

func (e *Engine) setup(ctx context.Context, p *protocol.Protocol, b *broker.Broker, logger *slog.Logger) (*session, error) {
	deck := tracker.New(tracker.WithLogger(logger))
	s := &session{
		ctx:     instrument.New(e.hw, deck, b, instrument.WithLogger(logger)),
		labware: make(map[string]*domain.Labware, len(p.Labware)),
	}

	for _, spec := range p.Labware {
		def, err := e.loader.Load(ctx, spec.LoadName, spec.Namespace, spec.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to load labware %s: %w", spec.Name, err)
		}
		lw, err := deck.Place(def, spec.Slot, spec.Label)
		if err != nil {
			return nil, fmt.Errorf("failed to place labware %s: %w", spec.Name, err)
		}
		s.labware[spec.Name] = lw
		logger.Debug("labware loaded", "name", spec.Name, "load_name", spec.LoadName, "slot", spec.Slot)
	}

	trash, ok := deck.LabwareAt(tracker.TrashSlot)
	if !ok {
		def, err := e.loader.Load(ctx, builtin.FixedTrash, "", 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixed trash: %w", err)
		}
		if trash, err = deck.Place(def, tracker.TrashSlot, ""); err != nil {
			return nil, fmt.Errorf("failed to place fixed trash: %w", err)
		}
	}

	for _, spec := range p.Pipettes {
		cfg := instrument.Config{
			Name:         spec.Name,
			Mount:        spec.Mount,
			Channels:     spec.Channels,
			MaxVolume:    spec.MaxVolume,
			Trash:        trash,
			AspirateRate: spec.AspirateRate,
			DispenseRate: spec.DispenseRate,
			BlowOutRate:  spec.BlowOutRate,
		}
		for _, name := range spec.TipRacks {
			cfg.TipRacks = append(cfg.TipRacks, s.labware[name])
		}
		if st := spec.StartingTip; st != nil {
			w, err := s.well(protocol.WellRef{Labware: st.Labware, Well: st.Well})
			if err != nil {
				return nil, fmt.Errorf("pipette %s starting tip: %w", spec.Name, err)
			}
			cfg.StartingTip = w
		}
		if _, err := s.ctx.LoadPipette(cfg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) well(ref protocol.WellRef) (*domain.Well, error) {
	lw, ok := s.labware[ref.Labware]
	if !ok {
		return nil, fmt.Errorf("%w: unknown labware %q", domain.ErrNoLocation, ref.Labware)
	}
	return lw.Well(ref.Well)
}

// target turns a document reference into a dispatcher target. A zero reference
// yields a nil Target.
func (s *session) target(ref protocol.TargetRef) (domain.Target, error) {
	switch {
	case ref.Point != nil:
		return domain.PointAt(ref.Point.X, ref.Point.Y, ref.Point.Z), nil
	case ref.Slot != "":
		return tracker.SlotLocation(ref.Slot)
	case ref.Labware != "":
		if ref.Well == "" {
			lw, ok := s.labware[ref.Labware]
			if !ok {
				return nil, fmt.Errorf("%w: unknown labware %q", domain.ErrNoLocation, ref.Labware)
			}
			return lw, nil
		}
		return s.well(protocol.WellRef{Labware: ref.Labware, Well: ref.Well})
	}
	return nil, nil
}
