package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-anim-ai/internal/domain/entity"
)

func TestSnapshotStoreKeepsLatestPerRun(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, "s1", entity.EvolutionSnapshot{ID: "run-a", TakenAt: t0}))
	require.NoError(t, store.Save(ctx, "s1", entity.EvolutionSnapshot{ID: "run-b", TakenAt: t0.Add(time.Minute)}))
	// 同一运行再次保存覆盖旧快照
	require.NoError(t, store.Save(ctx, "s1", entity.EvolutionSnapshot{ID: "run-a", TakenAt: t0.Add(2 * time.Minute), Degraded: true}))
	require.NoError(t, store.Save(ctx, "s2", entity.EvolutionSnapshot{ID: "run-c", TakenAt: t0}))

	runs, err := store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)

	latest, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Degraded)

	require.NoError(t, store.Delete(ctx, "s1"))
	latest, err = store.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	runs, err = store.List(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
