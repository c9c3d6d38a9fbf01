package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/ports"
)

// ChainLoader asks each loader in turn and returns the first definition found.
// Custom search paths go first so they can shadow built-in definitions.
type ChainLoader []ports.LabwareLoader

// Load implements ports.LabwareLoader. Only "not found" moves on to the next
// loader; any other failure stops the search.
func (c ChainLoader) Load(ctx context.Context, loadName, namespace string, version int) (*domain.LabwareDefinition, error) {
	for _, l := range c {
		def, err := l.Load(ctx, loadName, namespace, version)
		if err == nil {
			return def, nil
		}
		if !errors.Is(err, domain.ErrLabwareNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrLabwareNotFound, describe(loadName, namespace, version))
}

// List implements ports.LabwareLoader.
func (c ChainLoader) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, l := range c {
		names, err := l.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func describe(loadName, namespace string, version int) string {
	s := loadName
	if namespace != "" {
		s = namespace + "/" + s
	}
	if version != 0 {
		s = fmt.Sprintf("%s/%d", s, version)
	}
	return s
}
