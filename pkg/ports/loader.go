package ports

import (
	"context"

	"github.com/aretw0/pipette/pkg/domain"
)

// LabwareLoader resolves labware definitions by load name.
type LabwareLoader interface {
	// Load returns the definition for loadName. An empty namespace or a zero version
	// matches any. Returns an error wrapping domain.ErrLabwareNotFound when no
	// definition matches.
	Load(ctx context.Context, loadName, namespace string, version int) (*domain.LabwareDefinition, error)

	// List returns the load names this loader can serve.
	List(ctx context.Context) ([]string, error)
}
