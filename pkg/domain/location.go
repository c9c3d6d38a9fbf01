package domain

import (
	"fmt"
	"strconv"
)

// Point is a position in deck coordinates (millimetres).
type Point struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
	Z float64 `json:"z" yaml:"z" mapstructure:"z"`
}

// Add returns the component-wise sum of p and o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s, %s)", formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Target is anything an instrument can be pointed at: a Location, a *Well or a *Labware.
// A nil Target means "use the default for this operation".
type Target interface {
	isTarget()
}

// Location is a concrete point, optionally tagged with the labware or well it belongs to.
// A Location with neither reference is a bare spatial point; Slot optionally names
// the deck slot it was taken from.
type Location struct {
	Point   Point
	Labware *Labware
	Well    *Well
	Slot    string
}

func (Location) isTarget() {}

// PointAt returns a bare Location for the given coordinates.
func PointAt(x, y, z float64) Location {
	return Location{Point: Point{X: x, Y: y, Z: z}}
}

// IsBare reports whether the location carries no labware reference.
func (l Location) IsBare() bool {
	return l.Labware == nil && l.Well == nil
}

// Parent returns the owning labware, following the well reference if needed.
func (l Location) Parent() *Labware {
	if l.Well != nil {
		return l.Well.Labware()
	}
	return l.Labware
}

// Move returns a copy of l translated by delta, keeping its references.
func (l Location) Move(delta Point) Location {
	l.Point = l.Point.Add(delta)
	return l
}

// String renders the location the way run log texts refer to it.
func (l Location) String() string {
	switch {
	case l.Well != nil:
		return l.Well.String()
	case l.Labware != nil:
		return l.Labware.String()
	case l.Slot != "":
		return l.Slot
	default:
		return l.Point.String()
	}
}
