// Package tracker owns the deck: which labware sits in which slot and which
// tip-rack wells still hold tips.
//
// Tip selection and tip marking happen under one lock together with the
// physical action that consumes or returns the tip, so no observer can see a
// rack in a half-updated state and a failed pick-up leaves the rack untouched.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/pkg/domain"
)

// Reference selects the vertical anchor used when a well is resolved.
type Reference int

const (
	FromTop Reference = iota
	FromBottom
	FromCenter
)

// Anchor is the point of a well that a *Well target resolves to, offset by Z mm.
type Anchor struct {
	From Reference
	Z    float64
}

// Top anchors to the top of the well, z mm above it.
func Top(z float64) Anchor { return Anchor{From: FromTop, Z: z} }

// Bottom anchors z mm above the bottom of the well.
func Bottom(z float64) Anchor { return Anchor{From: FromBottom, Z: z} }

// Center anchors halfway down the well.
func Center() Anchor { return Anchor{From: FromCenter} }

// Tracker holds the deck state of one protocol execution.
type Tracker struct {
	mu     sync.Mutex
	slots  map[string]*domain.Labware
	order  []*domain.Labware
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for tip bookkeeping at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// New returns an empty deck.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		slots:  make(map[string]*domain.Labware),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load places labware in its slot.
func (t *Tracker) Load(lw *domain.Labware) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.slots[lw.Slot]; ok {
		return fmt.Errorf("%w: slot %s already holds %s", domain.ErrSlotOccupied, lw.Slot, existing.DisplayName)
	}
	t.slots[lw.Slot] = lw
	t.order = append(t.order, lw)
	return nil
}

// LabwareAt returns the labware in slot, if any.
func (t *Tracker) LabwareAt(slot string) (*domain.Labware, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lw, ok := t.slots[slot]
	return lw, ok
}

// Labware returns the loaded labware in load order.
func (t *Tracker) Labware() []*domain.Labware {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.Labware(nil), t.order...)
}

// Resolve turns a target into a concrete location. Bare points and locations are
// returned unchanged (after checking that a referenced well has geometry), wells
// resolve to the anchor, labware resolves to its top.
func (t *Tracker) Resolve(target domain.Target, anchor Anchor) (domain.Location, error) {
	switch v := target.(type) {
	case nil:
		return domain.Location{}, domain.ErrNoLocation
	case domain.Location:
		if v.Well != nil && v.Well.Geometry == nil {
			return domain.Location{}, fmt.Errorf("%w: well %s has no geometry", domain.ErrLabwareGeometry, v.Well)
		}
		return v, nil
	case *domain.Location:
		if v == nil {
			return domain.Location{}, domain.ErrNoLocation
		}
		return t.Resolve(*v, anchor)
	case *domain.Well:
		if v == nil {
			return domain.Location{}, domain.ErrNoLocation
		}
		switch anchor.From {
		case FromBottom:
			return v.Bottom(anchor.Z)
		case FromCenter:
			return v.Center()
		default:
			return v.Top(anchor.Z)
		}
	case *domain.Labware:
		if v == nil {
			return domain.Location{}, domain.ErrNoLocation
		}
		return v.Top(0)
	default:
		return domain.Location{}, fmt.Errorf("%w: unsupported target %T", domain.ErrLabwareGeometry, target)
	}
}

// NextAvailableTip returns the first well holding a tip, scanning racks in order.
// When start is set, racks before start's rack are skipped and start's rack is
// scanned from start onward. With channels > 1 the head of the first column whose
// first channels wells all hold tips is returned.
func (t *Tracker) NextAvailableTip(start *domain.Well, racks []*domain.Labware, channels int) (*domain.Well, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next(start, racks, channels)
}

func (t *Tracker) next(start *domain.Well, racks []*domain.Labware, channels int) (*domain.Well, error) {
	if channels < 1 {
		channels = 1
	}
	from := 0
	if start != nil {
		from = -1
		for i, rack := range racks {
			if rack == start.Labware() {
				from = i
				break
			}
		}
		if from < 0 {
			return nil, fmt.Errorf("starting tip %s is not in the configured tip racks", start)
		}
	}

	for _, rack := range racks[from:] {
		eligible := func(w *domain.Well) bool {
			return start == nil || rack != start.Labware() || w.Index() >= start.Index()
		}
		if channels == 1 {
			for _, w := range rack.Wells() {
				if eligible(w) && w.HasTip {
					return w, nil
				}
			}
			continue
		}
		for _, col := range rack.Columns() {
			if len(col) < channels || !eligible(col[0]) {
				continue
			}
			if allTips(col[:channels]) {
				return col[0], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no rack has %d tip(s) available", domain.ErrOutOfTips, channels)
}

func allTips(wells []*domain.Well) bool {
	for _, w := range wells {
		if !w.HasTip {
			return false
		}
	}
	return true
}

// group returns the wells a channels-wide head touches when its first nozzle is at head.
func group(head *domain.Well, channels int) ([]*domain.Well, error) {
	if channels <= 1 {
		return []*domain.Well{head}, nil
	}
	lw := head.Labware()
	if lw == nil {
		return nil, fmt.Errorf("%w: well %s belongs to no labware", domain.ErrLabwareGeometry, head)
	}
	for _, col := range lw.Columns() {
		for i, w := range col {
			if w != head {
				continue
			}
			if len(col)-i < channels {
				return nil, fmt.Errorf("%w: %d channels do not fit below %s", domain.ErrLabwareGeometry, channels, head)
			}
			return col[i : i+channels], nil
		}
	}
	return nil, fmt.Errorf("%w: well %s not found in its labware", domain.ErrLabwareGeometry, head)
}

func setTips(wells []*domain.Well, hasTip bool) []bool {
	prev := make([]bool, len(wells))
	for i, w := range wells {
		prev[i] = w.HasTip
		w.HasTip = hasTip
	}
	return prev
}

func restoreTips(wells []*domain.Well, prev []bool) {
	for i, w := range wells {
		w.HasTip = prev[i]
	}
}

// ClaimTip selects the next tip, marks it used, and runs pickUp, as one step.
// If pickUp fails the marks are rolled back and its error is returned.
func (t *Tracker) ClaimTip(start *domain.Well, racks []*domain.Labware, channels int, pickUp func(*domain.Well) error) (*domain.Well, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	head, err := t.next(start, racks, channels)
	if err != nil {
		return nil, err
	}
	if err := t.claim(head, channels, pickUp); err != nil {
		return nil, err
	}
	return head, nil
}

// ClaimWell marks an explicitly chosen tip well used and runs pickUp, as one step.
func (t *Tracker) ClaimWell(head *domain.Well, channels int, pickUp func(*domain.Well) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.claim(head, channels, pickUp)
}

func (t *Tracker) claim(head *domain.Well, channels int, pickUp func(*domain.Well) error) error {
	wells, err := group(head, channels)
	if err != nil {
		return err
	}
	prev := setTips(wells, false)
	if err := pickUp(head); err != nil {
		restoreTips(wells, prev)
		t.logger.Debug("tip claim rolled back", "well", head.String(), "err", err)
		return err
	}
	t.logger.Debug("tip claimed", "well", head.String(), "channels", channels)
	return nil
}

// ReturnTip marks the tips under head as present again and runs place, as one
// step. If place fails the marks are rolled back.
func (t *Tracker) ReturnTip(head *domain.Well, channels int, place func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	wells, err := group(head, channels)
	if err != nil {
		return err
	}
	prev := setTips(wells, true)
	if err := place(); err != nil {
		restoreTips(wells, prev)
		return err
	}
	return nil
}

// MarkTipUsed clears the tip flag of well. Marking an empty well is a no-op.
func (t *Tracker) MarkTipUsed(well *domain.Well) {
	t.mu.Lock()
	defer t.mu.Unlock()
	well.HasTip = false
}

// MarkTipReturned sets the tip flag of well. Marking a full well is a no-op.
func (t *Tracker) MarkTipReturned(well *domain.Well) {
	t.mu.Lock()
	defer t.mu.Unlock()
	well.HasTip = true
}

// RackStatus summarises the tips left in one rack.
type RackStatus struct {
	Slot      string `json:"slot"`
	LoadName  string `json:"load_name"`
	Remaining int    `json:"remaining"`
	Total     int    `json:"total"`
}

// Snapshot reports every loaded tip rack, in load order, from a single consistent view.
func (t *Tracker) Snapshot() []RackStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []RackStatus
	for _, lw := range t.order {
		if !lw.IsTipRack {
			continue
		}
		wells := lw.Wells()
		st := RackStatus{Slot: lw.Slot, LoadName: lw.LoadName, Total: len(wells)}
		for _, w := range wells {
			if w.HasTip {
				st.Remaining++
			}
		}
		out = append(out, st)
	}
	return out
}

// IsTipRackWell reports whether target is a well of a loaded tip rack.
func IsTipRackWell(target domain.Target) (*domain.Well, bool) {
	var w *domain.Well
	switch v := target.(type) {
	case *domain.Well:
		w = v
	case domain.Location:
		w = v.Well
	}
	if w == nil || w.Labware() == nil || !w.Labware().IsTipRack {
		return nil, false
	}
	return w, true
}
