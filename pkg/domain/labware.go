package domain

import (
	"fmt"
)

// WellGeometry is the physical shape of a well. Position is the bottom-center of the
// well in deck coordinates.
type WellGeometry struct {
	Shape      string
	Depth      float64
	Diameter   float64
	XDimension float64
	YDimension float64
	Position   Point
}

// Well is a single addressable position of a labware. HasTip is only meaningful
// for tip racks and is mutated exclusively by the state tracker.
type Well struct {
	Name     string
	Geometry *WellGeometry
	HasTip   bool

	labware *Labware
	index   int
}

func (*Well) isTarget() {}

// Labware returns the labware that owns the well.
func (w *Well) Labware() *Labware {
	return w.labware
}

// Index is the position of the well in its labware's ordering.
func (w *Well) Index() int {
	return w.index
}

func (w *Well) geometry() (*WellGeometry, error) {
	if w.Geometry == nil {
		return nil, fmt.Errorf("%w: well %s has no geometry", ErrLabwareGeometry, w)
	}
	return w.Geometry, nil
}

// Top returns the location z millimetres above the top of the well.
func (w *Well) Top(z float64) (Location, error) {
	g, err := w.geometry()
	if err != nil {
		return Location{}, err
	}
	return w.at(g.Position.Add(Point{Z: g.Depth + z})), nil
}

// Bottom returns the location z millimetres above the bottom of the well.
func (w *Well) Bottom(z float64) (Location, error) {
	g, err := w.geometry()
	if err != nil {
		return Location{}, err
	}
	return w.at(g.Position.Add(Point{Z: z})), nil
}

// Center returns the location halfway down the well.
func (w *Well) Center() (Location, error) {
	g, err := w.geometry()
	if err != nil {
		return Location{}, err
	}
	return w.at(g.Position.Add(Point{Z: g.Depth / 2})), nil
}

// Radii returns the half-widths of the well in X and Y.
func (w *Well) Radii() (float64, float64, error) {
	g, err := w.geometry()
	if err != nil {
		return 0, 0, err
	}
	if g.Shape == ShapeCircular {
		return g.Diameter / 2, g.Diameter / 2, nil
	}
	return g.XDimension / 2, g.YDimension / 2, nil
}

func (w *Well) at(p Point) Location {
	return Location{Point: p, Labware: w.labware, Well: w}
}

func (w *Well) String() string {
	if w.labware == nil {
		return w.Name
	}
	return fmt.Sprintf("%s of %s", w.Name, w.labware)
}

// Labware is a loaded piece of labware: an ordered set of wells placed in a deck slot.
type Labware struct {
	LoadName    string
	Namespace   string
	Version     int
	DisplayName string
	Slot        string
	IsTipRack   bool
	TipLength   float64

	origin  Point
	height  float64
	wells   []*Well
	byName  map[string]*Well
	columns [][]*Well
}

func (*Labware) isTarget() {}

// NewLabware builds a labware from its definition, placed at the given slot origin.
// Wells are ordered column by column, following the definition's ordering.
func NewLabware(def *LabwareDefinition, slot string, slotOrigin Point) (*Labware, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrLabwareGeometry)
	}
	if len(def.Ordering) == 0 {
		return nil, fmt.Errorf("%w: %s has no well ordering", ErrLabwareGeometry, def.Parameters.LoadName)
	}

	origin := slotOrigin.Add(def.CornerOffsetFromSlot)
	lw := &Labware{
		LoadName:    def.Parameters.LoadName,
		Namespace:   def.Namespace,
		Version:     def.Version,
		DisplayName: def.Metadata.DisplayName,
		Slot:        slot,
		IsTipRack:   def.Parameters.IsTiprack,
		TipLength:   def.Parameters.TipLength,
		origin:      origin,
		height:      def.Dimensions.ZDimension,
		byName:      make(map[string]*Well),
	}
	if lw.DisplayName == "" {
		lw.DisplayName = lw.LoadName
	}

	for _, column := range def.Ordering {
		col := make([]*Well, 0, len(column))
		for _, name := range column {
			wd, ok := def.Wells[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s orders unknown well %q", ErrLabwareGeometry, lw.LoadName, name)
			}
			if _, dup := lw.byName[name]; dup {
				return nil, fmt.Errorf("%w: %s orders well %q twice", ErrLabwareGeometry, lw.LoadName, name)
			}
			w := &Well{
				Name: name,
				Geometry: &WellGeometry{
					Shape:      wd.Shape,
					Depth:      wd.Depth,
					Diameter:   wd.Diameter,
					XDimension: wd.XDimension,
					YDimension: wd.YDimension,
					Position:   origin.Add(Point{X: wd.X, Y: wd.Y, Z: wd.Z}),
				},
				HasTip:  lw.IsTipRack,
				labware: lw,
				index:   len(lw.wells),
			}
			lw.wells = append(lw.wells, w)
			lw.byName[name] = w
			col = append(col, w)
		}
		lw.columns = append(lw.columns, col)
	}
	return lw, nil
}

// Wells returns the wells in definition order.
func (l *Labware) Wells() []*Well {
	out := make([]*Well, len(l.wells))
	copy(out, l.wells)
	return out
}

// Well looks up a well by name (e.g. "A1").
func (l *Labware) Well(name string) (*Well, error) {
	w, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no well %q", ErrLabwareGeometry, l, name)
	}
	return w, nil
}

// Columns returns the wells grouped by column.
func (l *Labware) Columns() [][]*Well {
	out := make([][]*Well, len(l.columns))
	for i, c := range l.columns {
		out[i] = append([]*Well(nil), c...)
	}
	return out
}

// Top returns the location z millimetres above the labware's highest point.
func (l *Labware) Top(z float64) (Location, error) {
	if l.height <= 0 {
		return Location{}, fmt.Errorf("%w: %s has no height", ErrLabwareGeometry, l)
	}
	return Location{Point: l.origin.Add(Point{Z: l.height + z}), Labware: l}, nil
}

func (l *Labware) String() string {
	return fmt.Sprintf("%s on %s", l.DisplayName, l.Slot)
}
