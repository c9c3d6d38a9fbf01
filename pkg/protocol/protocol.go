// Package protocol defines the protocol document: the deck layout, the pipettes
// and the ordered list of actions a run executes. Documents are written in YAML
// or JSON.
package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Protocol is a parsed protocol document.
type Protocol struct {
	APIVersion string        `yaml:"apiVersion" json:"apiVersion"`
	Metadata   Metadata      `yaml:"metadata" json:"metadata"`
	Labware    []LabwareSpec `yaml:"labware" json:"labware"`
	Pipettes   []PipetteSpec `yaml:"pipettes" json:"pipettes"`
	Actions    []Action      `yaml:"actions" json:"actions"`
}

// Metadata describes the protocol for humans.
type Metadata struct {
	ProtocolName string `yaml:"protocolName" json:"protocolName"`
	Author       string `yaml:"author,omitempty" json:"author,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LabwareSpec places one labware definition in a deck slot under a protocol-local name.
type LabwareSpec struct {
	Name      string `yaml:"name" json:"name"`
	LoadName  string `yaml:"loadName" json:"loadName"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Version   int    `yaml:"version,omitempty" json:"version,omitempty"`
	Slot      string `yaml:"slot" json:"slot"`
	// Label replaces the definition's display name in run log texts.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// WellRef names a well of a protocol labware.
type WellRef struct {
	Labware string `yaml:"labware" json:"labware" mapstructure:"labware"`
	Well    string `yaml:"well" json:"well" mapstructure:"well"`
}

// PipetteSpec configures one pipette.
type PipetteSpec struct {
	Name         string   `yaml:"name" json:"name"`
	Mount        string   `yaml:"mount" json:"mount"`
	Channels     int      `yaml:"channels,omitempty" json:"channels,omitempty"`
	MaxVolume    float64  `yaml:"maxVolume" json:"maxVolume"`
	TipRacks     []string `yaml:"tipRacks" json:"tipRacks"`
	StartingTip  *WellRef `yaml:"startingTip,omitempty" json:"startingTip,omitempty"`
	AspirateRate float64  `yaml:"aspirateRate,omitempty" json:"aspirateRate,omitempty"`
	DispenseRate float64  `yaml:"dispenseRate,omitempty" json:"dispenseRate,omitempty"`
	BlowOutRate  float64  `yaml:"blowOutRate,omitempty" json:"blowOutRate,omitempty"`
}

// Name returns the protocol's display name, falling back to fallback.
func (p *Protocol) Name(fallback string) string {
	if p.Metadata.ProtocolName != "" {
		return p.Metadata.ProtocolName
	}
	return fallback
}

// LabwareByName returns the labware spec declared under name.
func (p *Protocol) LabwareByName(name string) (LabwareSpec, bool) {
	for _, l := range p.Labware {
		if l.Name == name {
			return l, true
		}
	}
	return LabwareSpec{}, false
}

// Format selects the document syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension. Anything but .json is YAML.
func FormatFor(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes a protocol document.
func Parse(data []byte, format Format) (*Protocol, error) {
	var p Protocol
	if format == FormatJSON {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse protocol JSON: %w", err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse protocol YAML: %w", err)
		}
	}
	return &p, nil
}

// Load reads and parses a protocol file (YAML, or JSON for .json files).
func Load(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol: %w", err)
	}
	return Parse(data, FormatFor(path))
}
