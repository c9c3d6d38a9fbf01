package ports

import (
	"context"

	"github.com/aretw0/pipette/pkg/domain"
)

// RunStore archives finished protocol runs so they can be listed and inspected later.
type RunStore interface {
	// Save persists the run under run.ID, replacing any previous record.
	Save(ctx context.Context, run *domain.RunRecord) error

	// Load retrieves a run. Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes a run.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of archived runs.
	List(ctx context.Context) ([]string, error)
}
