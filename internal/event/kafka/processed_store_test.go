package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProcessedEventsStore_MarkAndCheck(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProcessedEventsStore()

	processed, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.MarkProcessed(ctx, "evt-1", time.Minute))
	require.NoError(t, store.MarkProcessed(ctx, "evt-1", time.Minute))

	processed, err = store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = store.IsProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryProcessedEventsStore_TTLExpiration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	store := NewMemoryProcessedEventsStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.MarkProcessed(ctx, "evt-1", 10*time.Second))
	require.NoError(t, store.MarkProcessed(ctx, "evt-2", time.Hour))

	now = now.Add(10 * time.Second)

	processed, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	processed, err = store.IsProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, store.Len())
}

func TestMovementEventID_Stable(t *testing.T) {
	assert.Equal(t, MovementEventID(7), MovementEventID(7))
	assert.NotEqual(t, MovementEventID(7), MovementEventID(8))
}
