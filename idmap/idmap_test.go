package idmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/logging"
	"github.com/openlift/syncengine/storage"
	"github.com/openlift/syncengine/storage/memory"
)

const testKey = "sync:idmap"

func newStore(t *testing.T) (*Store, *memory.KVStore) {
	t.Helper()
	kv := memory.NewKVStore()
	return Load(context.Background(), kv, testKey, logging.NewLogger(logging.Config{Level: "error"}).Logger), kv
}

func TestSetAndLookup(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SetMapping(ctx, "L1", "R1", entity.KindSchema))

	remoteID, ok := s.GetRemoteID("L1")
	require.True(t, ok)
	assert.Equal(t, "R1", remoteID)

	localID, ok := s.GetLocalID("R1")
	require.True(t, ok)
	assert.Equal(t, "L1", localID)

	assert.True(t, s.HasLocalMapping("L1"))
	assert.True(t, s.HasRemoteMapping("R1"))
	assert.False(t, s.HasLocalMapping("L2"))
	assert.False(t, s.HasRemoteMapping("R2"))
}

func TestOverwriteReplacesReverseEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SetMapping(ctx, "L1", "R1", entity.KindSchema))
	require.NoError(t, s.SetMapping(ctx, "L1", "R2", entity.KindSchema))

	_, ok := s.GetLocalID("R1")
	assert.False(t, ok, "old reverse entry should be dropped")

	localID, ok := s.GetLocalID("R2")
	require.True(t, ok)
	assert.Equal(t, "L1", localID)
	assert.Equal(t, 1, s.Len())
}

func TestRemoveMapping(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SetMapping(ctx, "L1", "R1", entity.KindExercise))
	require.NoError(t, s.RemoveMapping(ctx, "L1"))

	assert.False(t, s.HasLocalMapping("L1"))
	assert.False(t, s.HasRemoteMapping("R1"))

	// Removing again is a no-op, not an error.
	require.NoError(t, s.RemoveMapping(ctx, "L1"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	logger := logging.NewLogger(logging.Config{Level: "error"}).Logger

	s := Load(ctx, kv, testKey, logger)
	require.NoError(t, s.SetMapping(ctx, "L1", "R1", entity.KindSchema))
	require.NoError(t, s.SetMapping(ctx, "L2", "R2", entity.KindWorkoutDay))

	reloaded := Load(ctx, kv, testKey, logger)
	assert.Equal(t, 2, reloaded.Len())

	remoteID, ok := reloaded.GetRemoteID("L2")
	require.True(t, ok)
	assert.Equal(t, "R2", remoteID)

	localID, ok := reloaded.GetLocalID("R1")
	require.True(t, ok)
	assert.Equal(t, "L1", localID)
}

func TestMalformedStateLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(ctx, testKey, []byte("{not json")))

	s := Load(ctx, kv, testKey, logging.NewLogger(logging.Config{Level: "error"}).Logger)
	assert.Equal(t, 0, s.Len())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	require.NoError(t, s.SetMapping(ctx, "L1", "R1", entity.KindSchema))
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, 0, s.Len())
	_, err := kv.Get(ctx, testKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
