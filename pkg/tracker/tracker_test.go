package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/pipette/pkg/adapters/builtin"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func place(t *testing.T, tr *tracker.Tracker, loadName, slot string) *domain.Labware {
	t.Helper()
	def, err := builtin.NewLoader().Load(context.Background(), loadName, "", 0)
	require.NoError(t, err)
	lw, err := tr.Place(def, slot, "")
	require.NoError(t, err)
	return lw
}

func useAll(lw *domain.Labware) {
	for _, w := range lw.Wells() {
		w.HasTip = false
	}
}

func TestNextAvailableTip_SecondRack(t *testing.T) {
	tr := tracker.New()
	rack1 := place(t, tr, builtin.TipRack300, "1")
	rack2 := place(t, tr, builtin.TipRack300, "4")
	useAll(rack1)

	w, err := tr.NextAvailableTip(nil, []*domain.Labware{rack1, rack2}, 1)
	require.NoError(t, err)
	assert.Equal(t, "A1", w.Name)
	assert.Same(t, rack2, w.Labware())
}

func TestNextAvailableTip_StartingTip(t *testing.T) {
	tr := tracker.New()
	rack1 := place(t, tr, builtin.TipRack300, "1")
	rack2 := place(t, tr, builtin.TipRack300, "4")

	start, err := rack2.Well("C3")
	require.NoError(t, err)
	w, err := tr.NextAvailableTip(start, []*domain.Labware{rack1, rack2}, 1)
	require.NoError(t, err)
	assert.Same(t, start, w, "racks before the starting tip's rack are skipped")

	start.HasTip = false
	w, err = tr.NextAvailableTip(start, []*domain.Labware{rack1, rack2}, 1)
	require.NoError(t, err)
	assert.Equal(t, "D3", w.Name)

	foreign := place(t, tr, builtin.TipRack20, "7")
	_, err = tr.NextAvailableTip(foreign.Wells()[0], []*domain.Labware{rack1}, 1)
	assert.Error(t, err)
}

func TestNextAvailableTip_MultiChannel(t *testing.T) {
	tr := tracker.New()
	rack := place(t, tr, builtin.TipRack300, "1")
	b1, err := rack.Well("B1")
	require.NoError(t, err)
	b1.HasTip = false

	w, err := tr.NextAvailableTip(nil, []*domain.Labware{rack}, 8)
	require.NoError(t, err)
	assert.Equal(t, "A2", w.Name)
}

func TestNextAvailableTip_OutOfTips(t *testing.T) {
	tr := tracker.New()
	rack := place(t, tr, builtin.TipRack300, "1")
	useAll(rack)

	_, err := tr.NextAvailableTip(nil, []*domain.Labware{rack}, 1)
	assert.ErrorIs(t, err, domain.ErrOutOfTips)
	assert.Equal(t, "OutOfTipsError", domain.ErrorKind(err))
}

func TestClaimTip_RollsBackOnFailure(t *testing.T) {
	tr := tracker.New()
	rack := place(t, tr, builtin.TipRack300, "1")
	racks := []*domain.Labware{rack}
	jam := errors.New("tip jammed")

	_, err := tr.ClaimTip(nil, racks, 8, func(*domain.Well) error { return jam })
	assert.ErrorIs(t, err, jam)
	assert.Equal(t, 96, tr.Snapshot()[0].Remaining)

	var seen *domain.Well
	head, err := tr.ClaimTip(nil, racks, 8, func(w *domain.Well) error {
		seen = w
		assert.False(t, w.HasTip, "tips are marked before the physical pick-up")
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, head, seen)
	assert.Equal(t, 88, tr.Snapshot()[0].Remaining)

	next, err := tr.NextAvailableTip(nil, racks, 1)
	require.NoError(t, err)
	assert.Equal(t, "A2", next.Name)
}

func TestClaimWell_And_ReturnTip(t *testing.T) {
	tr := tracker.New()
	rack := place(t, tr, builtin.TipRack300, "1")
	h12, err := rack.Well("H12")
	require.NoError(t, err)

	require.NoError(t, tr.ClaimWell(h12, 1, func(*domain.Well) error { return nil }))
	assert.False(t, h12.HasTip)

	err = tr.ReturnTip(h12, 1, func() error { return domain.ErrDeviceRejected })
	assert.ErrorIs(t, err, domain.ErrDeviceRejected)
	assert.False(t, h12.HasTip)

	require.NoError(t, tr.ReturnTip(h12, 1, func() error { return nil }))
	assert.True(t, h12.HasTip)

	err = tr.ClaimWell(h12, 8, func(*domain.Well) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLabwareGeometry, "an 8-channel head cannot start at row H")
}

func TestMarkTip_Idempotent(t *testing.T) {
	tr := tracker.New()
	rack := place(t, tr, builtin.TipRack300, "1")
	a1 := rack.Wells()[0]

	tr.MarkTipUsed(a1)
	tr.MarkTipUsed(a1)
	assert.False(t, a1.HasTip)
	tr.MarkTipReturned(a1)
	tr.MarkTipReturned(a1)
	assert.True(t, a1.HasTip)
}

func TestLoad_SlotOccupied(t *testing.T) {
	tr := tracker.New()
	place(t, tr, builtin.CorningPlate, "2")

	def, err := builtin.NewLoader().Load(context.Background(), builtin.TipRack300, "", 0)
	require.NoError(t, err)
	_, err = tr.Place(def, "2", "")
	assert.ErrorIs(t, err, domain.ErrSlotOccupied)

	_, err = tr.Place(def, "13", "")
	assert.ErrorIs(t, err, domain.ErrLabwareGeometry)

	lw, ok := tr.LabwareAt("2")
	require.True(t, ok)
	assert.Equal(t, "Corning 96 Well Plate 360 µL Flat on 2", lw.String())
}

func TestResolve(t *testing.T) {
	tr := tracker.New()
	plate := place(t, tr, builtin.CorningPlate, "2")
	a1, err := plate.Well("A1")
	require.NoError(t, err)

	bare := domain.PointAt(1, 2, 3)
	got, err := tr.Resolve(bare, tracker.Top(0))
	require.NoError(t, err)
	assert.Equal(t, bare, got)

	top, err := tr.Resolve(a1, tracker.Top(0))
	require.NoError(t, err)
	assert.InDelta(t, 14.22, top.Point.Z, 1e-9)
	assert.InDelta(t, 132.5+14.38, top.Point.X, 1e-9)

	bottom, err := tr.Resolve(a1, tracker.Bottom(1))
	require.NoError(t, err)
	assert.InDelta(t, 14.22-10.67+1, bottom.Point.Z, 1e-9)

	unchanged, err := tr.Resolve(top, tracker.Bottom(1))
	require.NoError(t, err)
	assert.Equal(t, top, unchanged)

	lwTop, err := tr.Resolve(plate, tracker.Top(0))
	require.NoError(t, err)
	assert.Same(t, plate, lwTop.Labware)

	_, err = tr.Resolve(domain.Location{Well: &domain.Well{Name: "X1"}}, tracker.Top(0))
	assert.ErrorIs(t, err, domain.ErrLabwareGeometry)

	_, err = tr.Resolve(nil, tracker.Top(0))
	assert.ErrorIs(t, err, domain.ErrNoLocation)
}

func TestSnapshot_ConsistentUnderConcurrentClaims(t *testing.T) {
	tr := tracker.New()
	rack := place(t, tr, builtin.TipRack300, "1")
	racks := []*domain.Labware{rack}

	var wg sync.WaitGroup
	for i := 0; i < 48; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.ClaimTip(nil, racks, 1, func(*domain.Well) error { return nil })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, tracker.RackStatus{Slot: "1", LoadName: builtin.TipRack300, Remaining: 48, Total: 96}, snap[0])
}
