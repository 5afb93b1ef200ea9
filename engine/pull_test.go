package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/idmap"
	"github.com/openlift/syncengine/storage"
)

func TestPullMaterializesUnknownRemote(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	fx.remote.setSnapshot(entity.KindSchema, RemoteRecord{
		ID:        "R1",
		Fields:    map[string]any{"name": "Upper/Lower"},
		UpdatedAt: 1000,
	})

	result := fx.engine.Sync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Pulled)

	records, err := fx.local.List(ctx, entity.KindSchema)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Upper/Lower", records[0].Fields["name"])
	assert.Equal(t, int64(1000), records[0].UpdatedAt)
	assert.NotEmpty(t, records[0].LocalID)

	mappings := fx.loadMappings(t)
	localID, ok := mappings.GetLocalID("R1")
	require.True(t, ok)
	assert.Equal(t, records[0].LocalID, localID)
}

func TestPullLocalizesParentReferences(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	fx.remote.setSnapshot(entity.KindSchema, RemoteRecord{
		ID: "R-schema", Fields: map[string]any{"name": "PPL"}, UpdatedAt: 1,
	})
	fx.remote.setSnapshot(entity.KindWorkoutDay, RemoteRecord{
		ID: "R-day", Fields: map[string]any{"name": "Push", "schemaId": "R-schema"}, UpdatedAt: 1,
	})

	result := fx.engine.Sync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Pulled)

	schemas, err := fx.local.List(ctx, entity.KindSchema)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	days, err := fx.local.List(ctx, entity.KindWorkoutDay)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, schemas[0].LocalID, days[0].Fields["schemaId"],
		"parent pulled first, so the child's reference is localized")
}

func TestPullConflictLocalWinsOnTie(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, fx.local.Put(ctx, storage.Record{
		Kind: entity.KindSchema, LocalID: "L1",
		Fields: map[string]any{"name": "local edit"}, UpdatedAt: 5000,
	}))
	fx.seedMappings(t, idmap.Mapping{LocalID: "L1", RemoteID: "R1", EntityType: entity.KindSchema})

	fx.remote.setSnapshot(entity.KindSchema, RemoteRecord{
		ID: "R1", Fields: map[string]any{"name": "remote stale"}, UpdatedAt: 5000,
	})

	result := fx.engine.Sync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 0, result.Pulled)

	rec, err := fx.local.Get(ctx, entity.KindSchema, "L1")
	require.NoError(t, err)
	assert.Equal(t, "local edit", rec.Fields["name"], "equal timestamps keep local state")
}

func TestPullConflictRemoteWinsWhenNewer(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, fx.local.Put(ctx, storage.Record{
		Kind: entity.KindSchema, LocalID: "L1",
		Fields: map[string]any{"name": "old local"}, UpdatedAt: 5000,
	}))
	fx.seedMappings(t, idmap.Mapping{LocalID: "L1", RemoteID: "R1", EntityType: entity.KindSchema})

	fx.remote.setSnapshot(entity.KindSchema, RemoteRecord{
		ID: "R1", Fields: map[string]any{"name": "newer remote"}, UpdatedAt: 5001,
	})

	result := fx.engine.Sync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Pulled)

	rec, err := fx.local.Get(ctx, entity.KindSchema, "L1")
	require.NoError(t, err)
	assert.Equal(t, "newer remote", rec.Fields["name"])
	assert.Equal(t, int64(5001), rec.UpdatedAt)
}

func TestPullDeletesLocallyWhenAbsentFromSnapshot(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, fx.local.Put(ctx, storage.Record{
		Kind: entity.KindSchema, LocalID: "L1",
		Fields: map[string]any{"name": "was deleted remotely"}, UpdatedAt: 1,
	}))
	fx.seedMappings(t, idmap.Mapping{LocalID: "L1", RemoteID: "R1", EntityType: entity.KindSchema})

	// Snapshot is empty: the remote side deleted the entity.
	result := fx.engine.Sync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)

	_, err := fx.local.Get(ctx, entity.KindSchema, "L1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, fx.loadMappings(t).HasLocalMapping("L1"))
}

func TestPullKeepsUnmappedLocalEntities(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	// Never pushed, so absent from the remote snapshot by definition.
	require.NoError(t, fx.local.Put(ctx, storage.Record{
		Kind: entity.KindSchema, LocalID: "L-local-only",
		Fields: map[string]any{"name": "not yet synced"}, UpdatedAt: 1,
	}))

	result := fx.engine.Sync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)

	_, err := fx.local.Get(ctx, entity.KindSchema, "L-local-only")
	assert.NoError(t, err, "unmapped local entities survive the snapshot diff")
}

func TestPullPartialFailureIsolation(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	fx.remote.setSnapshot(entity.KindSchema, RemoteRecord{
		ID: "R1", Fields: map[string]any{"name": "ok"}, UpdatedAt: 1,
	})
	fx.remote.listErr[entity.KindWorkoutDay] = assert.AnError

	result := fx.engine.Sync(ctx)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Pulled, "other collections still reconcile")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], assert.AnError.Error())

	// All six collections were queried despite the failure.
	assert.Len(t, fx.remote.callsOf("list"), len(entity.Hierarchy))
}

func TestFullSyncSeedsUnmappedLocalEntities(t *testing.T) {
	fx := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, fx.local.Put(ctx, storage.Record{
		Kind: entity.KindSchema, LocalID: "L-schema",
		Fields: map[string]any{"name": "PPL"}, UpdatedAt: 1,
	}))
	require.NoError(t, fx.local.Put(ctx, storage.Record{
		Kind: entity.KindWorkoutDay, LocalID: "L-day",
		Fields: map[string]any{"name": "Push", "schemaId": "L-schema"}, UpdatedAt: 1,
	}))

	result := fx.engine.FullSync(ctx)
	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Pushed)

	creates := fx.remote.callsOf("create")
	require.Len(t, creates, 2)
	assert.Equal(t, entity.KindSchema, creates[0].kind)
	assert.Equal(t, entity.KindWorkoutDay, creates[1].kind)

	mappings := fx.loadMappings(t)
	assert.True(t, mappings.HasLocalMapping("L-schema"))
	assert.True(t, mappings.HasLocalMapping("L-day"))

	// Already mapped now: a second full sync enqueues nothing.
	fx.remote.resetCalls()
	result = fx.engine.FullSync(ctx)
	require.True(t, result.Success)
	assert.Equal(t, 0, result.Pushed)
	assert.Empty(t, fx.remote.callsOf("create"))
}
