package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/pipette/pkg/adapters/memory"
	"github.com/aretw0/pipette/pkg/domain"
	contract "github.com/aretw0/pipette/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trough = `{
  "namespace": "custom_beta",
  "version": 1,
  "metadata": {"displayName": "Single Trough"},
  "parameters": {"loadName": "single_trough", "isTiprack": false},
  "dimensions": {"xDimension": 127, "yDimension": 85, "zDimension": 40},
  "ordering": [["A1"]],
  "wells": {"A1": {"depth": 35, "shape": "rectangular", "xDimension": 100, "yDimension": 70, "totalLiquidVolume": 200000, "x": 63.5, "y": 42.5, "z": 5}}
}`

func TestInMemoryLoader_Contract(t *testing.T) {
	loader := memory.NewLoader(map[string]string{"single_trough": trough})
	contract.LabwareLoaderContractTest(t, loader, map[string]string{"single_trough": "Single Trough"})
}

func TestInMemoryLoader_NamespaceAndVersion(t *testing.T) {
	loader := memory.NewLoader(map[string]string{"single_trough": trough})
	ctx := context.Background()

	_, err := loader.Load(ctx, "single_trough", "custom_beta", 1)
	require.NoError(t, err)

	_, err = loader.Load(ctx, "single_trough", "opentrons", 0)
	assert.ErrorIs(t, err, domain.ErrLabwareNotFound)

	_, err = loader.Load(ctx, "single_trough", "", 2)
	assert.ErrorIs(t, err, domain.ErrLabwareNotFound)
}

func TestNewFromDefinitions(t *testing.T) {
	_, err := memory.NewFromDefinitions(domain.LabwareDefinition{})
	assert.Error(t, err)

	loader, err := memory.NewFromDefinitions(domain.LabwareDefinition{
		Parameters: domain.DefinitionParameters{LoadName: "a"},
	})
	require.NoError(t, err)
	names, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}
