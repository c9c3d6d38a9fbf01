package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/pipette/pkg/domain"
)

// Loader implements ports.LabwareLoader using an in-memory map of raw JSON definitions.
type Loader struct {
	defs map[string][]byte
}

// NewLoader creates a new Loader from raw definitions keyed by load name (JSON strings).
func NewLoader(data map[string]string) *Loader {
	defs := make(map[string][]byte)
	for k, v := range data {
		defs[k] = []byte(v)
	}
	return &Loader{
		defs: defs,
	}
}

// NewFromDefinitions creates a Loader from domain objects.
// This handles serialization automatically, so every Load hands out a fresh copy.
func NewFromDefinitions(defs ...domain.LabwareDefinition) (*Loader, error) {
	data := make(map[string][]byte)
	for _, d := range defs {
		if d.Parameters.LoadName == "" {
			return nil, fmt.Errorf("labware definition missing load name")
		}
		bytes, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal labware %s: %w", d.Parameters.LoadName, err)
		}
		data[d.Parameters.LoadName] = bytes
	}
	return &Loader{defs: data}, nil
}

// Load decodes the definition stored under loadName.
func (l *Loader) Load(_ context.Context, loadName, namespace string, version int) (*domain.LabwareDefinition, error) {
	content, ok := l.defs[loadName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLabwareNotFound, loadName)
	}
	var def domain.LabwareDefinition
	if err := json.Unmarshal(content, &def); err != nil {
		return nil, fmt.Errorf("failed to decode labware %s: %w", loadName, err)
	}
	if (namespace != "" && def.Namespace != namespace) || (version != 0 && def.Version != version) {
		return nil, fmt.Errorf("%w: %s/%s/%d", domain.ErrLabwareNotFound, namespace, loadName, version)
	}
	return &def, nil
}

// List returns all available load names.
func (l *Loader) List(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.defs))
	for k := range l.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
