package ports

import (
	"context"
	"time"

	"github.com/aretw0/pipette/pkg/domain"
)

// MoveOptions tunes a single move. Zero values mean "use the hardware default".
type MoveOptions struct {
	// Speed in mm/s.
	Speed float64
	// ForceDirect skips the safe arc and moves in a straight line.
	ForceDirect bool
	// MinimumZHeight raises the travel height of the arc, in deck coordinates.
	MinimumZHeight float64
}

// Hardware is the capability surface the dispatcher drives. Implementations perform
// the physical effect (or simulate it) and never publish run log records.
//
// Locations handed to Hardware are always resolved to concrete points.
type Hardware interface {
	MoveTo(ctx context.Context, loc domain.Location, opts MoveOptions) error

	// Aspirate draws volume (µL) at loc at rate (µL/s).
	Aspirate(ctx context.Context, volume float64, loc domain.Location, rate float64) error

	// Dispense expels volume (µL) at loc at rate (µL/s).
	Dispense(ctx context.Context, volume float64, loc domain.Location, rate float64) error

	// PickUpTip presses onto the tip whose top is at loc.
	PickUpTip(ctx context.Context, loc domain.Location, tipLength float64) error

	// DropTip ejects the held tip at loc.
	DropTip(ctx context.Context, loc domain.Location) error

	// BlowOut expels any residual liquid at loc.
	BlowOut(ctx context.Context, loc domain.Location) error

	// Probe moves the given axes toward the target values until contact.
	Probe(ctx context.Context, axes map[string]float64, speed float64) error

	// Delay pauses motion for d.
	Delay(ctx context.Context, d time.Duration) error
}
