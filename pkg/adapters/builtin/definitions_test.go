package builtin_test

import (
	"context"
	"testing"

	"github.com/aretw0/pipette/pkg/adapters/builtin"
	"github.com/aretw0/pipette/pkg/domain"
	contract "github.com/aretw0/pipette/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinLoader_Contract(t *testing.T) {
	contract.LabwareLoaderContractTest(t, builtin.NewLoader(), map[string]string{
		builtin.TipRack300:   "Opentrons 96 Tip Rack 300 µL",
		builtin.CorningPlate: "Corning 96 Well Plate 360 µL Flat",
		builtin.NestTrough:   "NEST 12 Well Reservoir 15 mL",
		builtin.FixedTrash:   "Opentrons Fixed Trash",
	})
}

func TestTipRackGeometry(t *testing.T) {
	def, err := builtin.NewLoader().Load(context.Background(), builtin.TipRack300, builtin.Namespace, 1)
	require.NoError(t, err)
	assert.True(t, def.Parameters.IsTiprack)
	assert.Equal(t, 59.3, def.Parameters.TipLength)

	lw, err := domain.NewLabware(def, "1", domain.Point{})
	require.NoError(t, err)
	assert.Len(t, lw.Wells(), 96)
	assert.Len(t, lw.Columns(), 12)
	assert.Equal(t, "H12", lw.Wells()[95].Name)

	for _, w := range lw.Wells() {
		assert.True(t, w.HasTip)
	}
	top, err := lw.Wells()[0].Top(0)
	require.NoError(t, err)
	assert.InDelta(t, 64.49, top.Point.Z, 1e-9)
}
