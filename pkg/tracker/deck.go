package tracker

import (
	"fmt"
	"strconv"

	"github.com/aretw0/pipette/pkg/domain"
)

// TrashSlot is the slot reserved for the fixed trash.
const TrashSlot = "12"

const (
	slotPitchX = 132.5
	slotPitchY = 90.5
)

// SlotOrigin returns the front-left corner of a deck slot ("1" to "12"). Slots
// are numbered left to right, front to back, three per row.
func SlotOrigin(slot string) (domain.Point, error) {
	n, err := strconv.Atoi(slot)
	if err != nil || n < 1 || n > 12 {
		return domain.Point{}, fmt.Errorf("%w: unknown deck slot %q", domain.ErrLabwareGeometry, slot)
	}
	n--
	return domain.Point{X: float64(n%3) * slotPitchX, Y: float64(n/3) * slotPitchY}, nil
}

// Place builds labware from def in slot and loads it. A non-empty label replaces
// the definition's display name.
func (t *Tracker) Place(def *domain.LabwareDefinition, slot, label string) (*domain.Labware, error) {
	origin, err := SlotOrigin(slot)
	if err != nil {
		return nil, err
	}
	lw, err := domain.NewLabware(def, slot, origin)
	if err != nil {
		return nil, err
	}
	if label != "" {
		lw.DisplayName = label
	}
	if err := t.Load(lw); err != nil {
		return nil, err
	}
	return lw, nil
}

// SlotLocation returns the origin of slot as a bare location named after the slot.
func SlotLocation(slot string) (domain.Location, error) {
	p, err := SlotOrigin(slot)
	if err != nil {
		return domain.Location{}, err
	}
	return domain.Location{Point: p, Slot: slot}, nil
}
