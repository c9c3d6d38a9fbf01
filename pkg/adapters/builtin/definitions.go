// Package builtin ships the labware definitions every deck can load without
// custom files: tip racks, plates, a reservoir and the fixed trash.
package builtin

import (
	"fmt"

	"github.com/aretw0/pipette/pkg/adapters/memory"
	"github.com/aretw0/pipette/pkg/domain"
)

// Namespace of every built-in definition.
const Namespace = "opentrons"

// Load names of the built-in definitions.
const (
	TipRack20    = "opentrons_96_tiprack_20ul"
	TipRack300   = "opentrons_96_tiprack_300ul"
	TipRack1000  = "opentrons_96_tiprack_1000ul"
	CorningPlate = "corning_96_wellplate_360ul_flat"
	NestPCRPlate = "nest_96_wellplate_100ul_pcr_full_skirt"
	NestTrough   = "nest_12_reservoir_15ml"
	FixedTrash   = "opentrons_1_trash_1100ml_fixed"
)

var (
	rows = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	footprint = domain.Dimensions{XDimension: 127.76, YDimension: 85.48}
)

// grid96 lays out a standard 8x12 grid with A1 at (14.38, 74.24) and 9 mm pitch.
func grid96(well domain.WellDefinition) ([][]string, map[string]domain.WellDefinition) {
	var ordering [][]string
	wells := make(map[string]domain.WellDefinition, 96)
	for c := 0; c < 12; c++ {
		column := make([]string, 0, len(rows))
		for r, row := range rows {
			name := fmt.Sprintf("%s%d", row, c+1)
			w := well
			w.X = 14.38 + float64(c)*9
			w.Y = 74.24 - float64(r)*9
			wells[name] = w
			column = append(column, name)
		}
		ordering = append(ordering, column)
	}
	return ordering, wells
}

func tipRack(loadName, displayName string, height, tipLength, diameter, volume float64) domain.LabwareDefinition {
	ordering, wells := grid96(domain.WellDefinition{
		Depth:             tipLength,
		Shape:             domain.ShapeCircular,
		Diameter:          diameter,
		TotalLiquidVolume: volume,
		Z:                 height - tipLength,
	})
	dims := footprint
	dims.ZDimension = height
	return domain.LabwareDefinition{
		Namespace:  Namespace,
		Version:    1,
		Metadata:   domain.DefinitionMetadata{DisplayName: displayName, DisplayCategory: "tipRack"},
		Parameters: domain.DefinitionParameters{LoadName: loadName, IsTiprack: true, TipLength: tipLength},
		Dimensions: dims,
		Ordering:   ordering,
		Wells:      wells,
	}
}

func plate(loadName, displayName string, height, depth, diameter, volume float64) domain.LabwareDefinition {
	ordering, wells := grid96(domain.WellDefinition{
		Depth:             depth,
		Shape:             domain.ShapeCircular,
		Diameter:          diameter,
		TotalLiquidVolume: volume,
		Z:                 height - depth,
	})
	dims := footprint
	dims.ZDimension = height
	return domain.LabwareDefinition{
		Namespace:  Namespace,
		Version:    1,
		Metadata:   domain.DefinitionMetadata{DisplayName: displayName, DisplayCategory: "wellPlate"},
		Parameters: domain.DefinitionParameters{LoadName: loadName},
		Dimensions: dims,
		Ordering:   ordering,
		Wells:      wells,
	}
}

func reservoir() domain.LabwareDefinition {
	ordering := make([][]string, 0, 12)
	wells := make(map[string]domain.WellDefinition, 12)
	for c := 0; c < 12; c++ {
		name := fmt.Sprintf("A%d", c+1)
		wells[name] = domain.WellDefinition{
			Depth:             26.85,
			Shape:             domain.ShapeRectangular,
			XDimension:        8.2,
			YDimension:        71.2,
			TotalLiquidVolume: 15000,
			X:                 14.38 + float64(c)*9,
			Y:                 42.78,
			Z:                 4.55,
		}
		ordering = append(ordering, []string{name})
	}
	dims := footprint
	dims.ZDimension = 31.4
	return domain.LabwareDefinition{
		Namespace:  Namespace,
		Version:    1,
		Metadata:   domain.DefinitionMetadata{DisplayName: "NEST 12 Well Reservoir 15 mL", DisplayCategory: "reservoir"},
		Parameters: domain.DefinitionParameters{LoadName: NestTrough},
		Dimensions: dims,
		Ordering:   ordering,
		Wells:      wells,
	}
}

func trash() domain.LabwareDefinition {
	return domain.LabwareDefinition{
		Namespace:  Namespace,
		Version:    1,
		Metadata:   domain.DefinitionMetadata{DisplayName: "Opentrons Fixed Trash", DisplayCategory: "trash"},
		Parameters: domain.DefinitionParameters{LoadName: FixedTrash},
		Dimensions: domain.Dimensions{XDimension: 172.86, YDimension: 165.86, ZDimension: 82},
		Ordering:   [][]string{{"A1"}},
		Wells: map[string]domain.WellDefinition{
			"A1": {
				Shape:             domain.ShapeRectangular,
				XDimension:        172.86,
				YDimension:        165.86,
				TotalLiquidVolume: 1100000,
				X:                 82.84,
				Y:                 80,
				Z:                 82,
			},
		},
	}
}

// Definitions returns a fresh copy of every built-in definition.
func Definitions() []domain.LabwareDefinition {
	return []domain.LabwareDefinition{
		tipRack(TipRack20, "Opentrons 96 Tip Rack 20 µL", 64.69, 39.2, 3.27, 20),
		tipRack(TipRack300, "Opentrons 96 Tip Rack 300 µL", 64.49, 59.3, 5.23, 300),
		tipRack(TipRack1000, "Opentrons 96 Tip Rack 1000 µL", 97.47, 88, 7.62, 1000),
		plate(CorningPlate, "Corning 96 Well Plate 360 µL Flat", 14.22, 10.67, 6.86, 360),
		plate(NestPCRPlate, "NEST 96 Well Plate 100 µL PCR Full Skirt", 15.7, 14.78, 5.34, 100),
		reservoir(),
		trash(),
	}
}

// NewLoader returns a LabwareLoader serving the built-in definitions.
func NewLoader() *memory.Loader {
	loader, err := memory.NewFromDefinitions(Definitions()...)
	if err != nil {
		// Built-in definitions always carry a load name.
		panic(err)
	}
	return loader
}
