package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/pipette/pkg/adapters/memory"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunRunStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	run := &domain.RunRecord{ID: "r1", Log: []domain.CommandRecord{{Text: "Touching tip"}}}
	require.NoError(t, store.Save(ctx, run))

	run.Log[0].Text = "mutated"
	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Touching tip", loaded.Log[0].Text)
}
