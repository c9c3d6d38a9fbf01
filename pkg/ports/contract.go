package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractRun(id string) *domain.RunRecord {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.RunRecord{
		ID:         id,
		Protocol:   "contract",
		APIVersion: "2.13",
		Status:     domain.RunSucceeded,
		Log: []domain.CommandRecord{
			{ID: id + "-1", Kind: domain.ActionPickUpTip, Text: "Picking up tip from A1 of Opentrons 96 Tip Rack 300 µL on 1", Timestamp: started},
			{ID: id + "-2", Kind: domain.ActionAspirate, Text: "Aspirating 10.0 uL", Timestamp: started, Params: domain.CommandParams{Volume: 10, Rate: 150}},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		run := contractRun(runID)

		err := store.Save(ctx, run)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, run.Status, loaded.Status)
		assert.Equal(t, domain.Texts(run.Log), domain.Texts(loaded.Log))
		assert.Equal(t, 10.0, loaded.Log[1].Params.Volume)
		assert.True(t, run.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, contractRun(runID))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, contractRun(id1))
		_ = store.Save(ctx, contractRun(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
