// Package loam serves custom labware definitions from directories of JSON
// files, read through Loam document repositories.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/pipette/pkg/domain"
)

// Loader adapts a Loam repository to ports.LabwareLoader. Every document
// whose parameters carry a load name is treated as a labware definition;
// anything else in the directory is ignored.
type Loader struct {
	Repo *loam.TypedRepository[domain.LabwareDefinition]
	dir  string
}

// New wraps an existing typed repository.
func New(repo *loam.TypedRepository[domain.LabwareDefinition]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only Loam repository over dir. The directory is
// never written to.
func Open(dir string) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid labware path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithReadOnly(true),
		loam.WithVersioning(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open labware directory %s: %w", abs, err)
	}
	l := FromRepository(repo)
	l.dir = abs
	return l, nil
}

// FromRepository wraps an untyped Loam repository.
func FromRepository(repo core.Repository) *Loader {
	return New(loam.NewTypedRepository[domain.LabwareDefinition](repo))
}

// Dir returns the directory the loader was opened on, if any.
func (l *Loader) Dir() string { return l.dir }

func (l *Loader) definitions(ctx context.Context) ([]domain.LabwareDefinition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	defs := make([]domain.LabwareDefinition, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.Parameters.LoadName == "" {
			continue
		}
		defs = append(defs, doc.Data)
	}
	return defs, nil
}

// Load implements ports.LabwareLoader. When several files define the same
// load name, the highest matching version wins.
func (l *Loader) Load(ctx context.Context, loadName, namespace string, version int) (*domain.LabwareDefinition, error) {
	defs, err := l.definitions(ctx)
	if err != nil {
		return nil, err
	}
	var found *domain.LabwareDefinition
	for i := range defs {
		d := &defs[i]
		if d.Parameters.LoadName != loadName {
			continue
		}
		if namespace != "" && d.Namespace != namespace {
			continue
		}
		if version != 0 && d.Version != version {
			continue
		}
		if found == nil || d.Version > found.Version {
			found = d
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrLabwareNotFound, loadName, l.describe())
	}
	return found, nil
}

// List implements ports.LabwareLoader.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	defs, err := l.definitions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(defs))
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		if !seen[d.Parameters.LoadName] {
			seen[d.Parameters.LoadName] = true
			names = append(names, d.Parameters.LoadName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *Loader) describe() string {
	if l.dir == "" {
		return "loam repository"
	}
	return l.dir
}
