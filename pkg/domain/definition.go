package domain

// LabwareDefinition is the subset of the labware schema (v2) the pipeline needs.
// Field names follow the published JSON definitions so custom labware files can be
// decoded without translation.
type LabwareDefinition struct {
	Namespace            string                    `json:"namespace" mapstructure:"namespace"`
	Version              int                       `json:"version" mapstructure:"version"`
	Metadata             DefinitionMetadata        `json:"metadata" mapstructure:"metadata"`
	Parameters           DefinitionParameters      `json:"parameters" mapstructure:"parameters"`
	Dimensions           Dimensions                `json:"dimensions" mapstructure:"dimensions"`
	CornerOffsetFromSlot Point                     `json:"cornerOffsetFromSlot" mapstructure:"cornerOffsetFromSlot"`
	Ordering             [][]string                `json:"ordering" mapstructure:"ordering"`
	Wells                map[string]WellDefinition `json:"wells" mapstructure:"wells"`
}

// DefinitionMetadata holds display information.
type DefinitionMetadata struct {
	DisplayName     string `json:"displayName" mapstructure:"displayName"`
	DisplayCategory string `json:"displayCategory,omitempty" mapstructure:"displayCategory"`
}

// DefinitionParameters holds behavioural parameters.
type DefinitionParameters struct {
	LoadName  string  `json:"loadName" mapstructure:"loadName"`
	IsTiprack bool    `json:"isTiprack" mapstructure:"isTiprack"`
	TipLength float64 `json:"tipLength,omitempty" mapstructure:"tipLength"`
}

// Dimensions is the labware's outer bounding box.
type Dimensions struct {
	XDimension float64 `json:"xDimension" mapstructure:"xDimension"`
	YDimension float64 `json:"yDimension" mapstructure:"yDimension"`
	ZDimension float64 `json:"zDimension" mapstructure:"zDimension"`
}

// WellDefinition describes one well relative to the labware origin.
// X, Y, Z locate the bottom-center of the well.
type WellDefinition struct {
	Depth             float64 `json:"depth" mapstructure:"depth"`
	Shape             string  `json:"shape" mapstructure:"shape"`
	Diameter          float64 `json:"diameter,omitempty" mapstructure:"diameter"`
	XDimension        float64 `json:"xDimension,omitempty" mapstructure:"xDimension"`
	YDimension        float64 `json:"yDimension,omitempty" mapstructure:"yDimension"`
	TotalLiquidVolume float64 `json:"totalLiquidVolume" mapstructure:"totalLiquidVolume"`
	X                 float64 `json:"x" mapstructure:"x"`
	Y                 float64 `json:"y" mapstructure:"y"`
	Z                 float64 `json:"z" mapstructure:"z"`
}

// Well shapes.
const (
	ShapeCircular    = "circular"
	ShapeRectangular = "rectangular"
)
