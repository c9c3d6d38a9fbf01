package simulated_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/hardware/simulated"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardware_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	hw := simulated.New()

	require.NoError(t, hw.MoveTo(ctx, domain.PointAt(1, 2, 3), ports.MoveOptions{Speed: 50}))
	require.NoError(t, hw.Aspirate(ctx, 10, domain.PointAt(1, 2, 0), 150))
	require.NoError(t, hw.Probe(ctx, map[string]float64{"Z": -5}, 5))

	start := time.Now()
	require.NoError(t, hw.Delay(ctx, time.Hour))
	assert.Less(t, time.Since(start), time.Second, "simulator must not sleep")

	calls := hw.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{"MoveTo", "Aspirate", "Probe", "Delay"}, hw.Methods())
	assert.Equal(t, 50.0, calls[0].Options.Speed)
	assert.Equal(t, 10.0, calls[1].Volume)
	assert.Equal(t, -5.0, calls[2].Axes["Z"])
	assert.Equal(t, time.Hour, calls[3].Duration)

	calls[0].Method = "mutated"
	assert.Equal(t, "MoveTo", hw.Calls()[0].Method, "Calls must return a copy")
}

func TestHardware_FailOn(t *testing.T) {
	ctx := context.Background()
	hw := simulated.New()
	boom := errors.New("tip sensor tripped")
	hw.FailOn(simulated.MethodPickUpTip, 2, boom)

	require.NoError(t, hw.PickUpTip(ctx, domain.PointAt(0, 0, 0), 51))
	require.NoError(t, hw.MoveTo(ctx, domain.PointAt(0, 0, 0), ports.MoveOptions{}))
	assert.ErrorIs(t, hw.PickUpTip(ctx, domain.PointAt(0, 0, 0), 51), boom)
	require.NoError(t, hw.PickUpTip(ctx, domain.PointAt(0, 0, 0), 51))

	calls := hw.Calls()
	require.Len(t, calls, 4)
	assert.ErrorIs(t, calls[2].Err, boom)
}

func TestHardware_FailAt(t *testing.T) {
	ctx := context.Background()
	hw := simulated.New()
	hw.FailAt(2, domain.ErrDeviceRejected)

	require.NoError(t, hw.BlowOut(ctx, domain.PointAt(0, 0, 0)))
	assert.ErrorIs(t, hw.DropTip(ctx, domain.PointAt(0, 0, 0)), domain.ErrDeviceRejected)
	require.NoError(t, hw.Dispense(ctx, 5, domain.PointAt(0, 0, 0), 300))
}
