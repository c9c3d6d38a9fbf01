package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/ports"
)

// LabwareLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.LabwareLoader.
// expected maps each load name the loader must serve to its display name.
func LabwareLoaderContractTest(t *testing.T, loader ports.LabwareLoader, expected map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for loadName, displayName := range expected {
			def, err := loader.Load(ctx, loadName, "", 0)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", loadName, err)
			}
			if def.Parameters.LoadName != loadName {
				t.Errorf("load name mismatch: got %q, want %q", def.Parameters.LoadName, loadName)
			}
			if def.Metadata.DisplayName != displayName {
				t.Errorf("display name mismatch for %s: got %q, want %q", loadName, def.Metadata.DisplayName, displayName)
			}
			if _, err := domain.NewLabware(def, "1", domain.Point{}); err != nil {
				t.Errorf("definition %s does not build: %v", loadName, err)
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non_existent_labware", "", 0)
		if !errors.Is(err, domain.ErrLabwareNotFound) {
			t.Errorf("expected ErrLabwareNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		names, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing labware: %v", err)
		}

		lookup := make(map[string]bool)
		for _, name := range names {
			lookup[name] = true
		}
		for name := range expected {
			if !lookup[name] {
				t.Errorf("labware %s missing from list", name)
			}
		}
	})
}
