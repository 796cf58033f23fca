package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/repository/ephemeral"
	"insightboard/internal/repository/memory"
)

func newSelector() (*Selector, *memory.DocumentDriver) {
	driver := memory.NewDocumentDriver()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewSelector(memory.NewKVStore(), ephemeral.NewLocks(), driver, driver, logger), driver
}

// Both backends must behave identically, so every case runs against each.
func forEachBackend(t *testing.T, fn func(t *testing.T, store repositories.ResourceStore)) {
	sel, _ := newSelector()
	identities := map[string]models.Identity{
		"ephemeral": models.Guest("session-1"),
		"durable":   models.Member("user-1", models.PlanFree),
	}
	for name, id := range identities {
		t.Run(name, func(t *testing.T) {
			fn(t, sel.For(id))
		})
	}
}

func seed(t *testing.T, ctx context.Context, store repositories.ResourceStore) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repositories.InsertAs(ctx, store, repositories.WorkspaceKey("w1"),
		workspace.Workspace{ID: "w1", Name: "Acme", Website: "acme.io", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repositories.InsertAs(ctx, store, repositories.DashboardKey("w1", "d1"),
		workspace.Dashboard{ID: "d1", WorkspaceID: "w1", Name: "Main", IsActive: true, CreatedAt: now, UpdatedAt: now}))
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repositories.InsertAs(ctx, store, repositories.LeafKey(repositories.KindTile, "w1", "d1", id),
			workspace.Tile{ID: id, Title: "T " + id, Content: "body", OrderIndex: i, History: []workspace.Message{}}))
	}
}

func TestResourceStore_FindAndNoEmbeddedChildren(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store repositories.ResourceStore) {
		ctx := context.Background()
		seed(t, ctx, store)

		raw, err := store.FindOne(ctx, repositories.WorkspaceKey("w1"))
		require.NoError(t, err)
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.NotContains(t, body, "dashboards")

		db, err := repositories.FindOneAs[workspace.Dashboard](ctx, store, repositories.DashboardKey("w1", "d1"))
		require.NoError(t, err)
		assert.Equal(t, "Main", db.Name)
		assert.Empty(t, db.Tiles)

		tiles, err := repositories.FindManyAs[workspace.Tile](ctx, store, repositories.Query{
			Kind: repositories.KindTile, WorkspaceID: "w1", DashboardID: "d1",
		})
		require.NoError(t, err)
		require.Len(t, tiles, 3)
		assert.Equal(t, "a", tiles[0].ID)

		found, err := store.FindMany(ctx, repositories.Query{
			Kind:  repositories.KindWorkspace,
			Match: map[string]any{"name": "Acme", "website": "acme.io"},
		})
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})
}

func TestResourceStore_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store repositories.ResourceStore) {
		ctx := context.Background()
		seed(t, ctx, store)

		_, err := store.FindOne(ctx, repositories.LeafKey(repositories.KindNote, "w1", "d1", "missing"))
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = store.InsertOne(ctx, repositories.LeafKey(repositories.KindNote, "w1", "nope", "n1"), []byte(`{"id":"n1"}`))
		assert.ErrorIs(t, err, domain.ErrNotFound, "insert into a missing container")

		_, err = store.FindMany(ctx, repositories.Query{Kind: repositories.KindDashboard, WorkspaceID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.UpdateOne(ctx, repositories.LeafKey(repositories.KindTile, "w1", "d1", "zzz"), repositories.Patch{"title": "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestResourceStore_DuplicateID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store repositories.ResourceStore) {
		ctx := context.Background()
		seed(t, ctx, store)

		err := store.InsertOne(ctx, repositories.LeafKey(repositories.KindTile, "w1", "d1", "a"), []byte(`{"id":"a","title":"dup"}`))
		assert.ErrorIs(t, err, domain.ErrDuplicateID)
		err = store.InsertOne(ctx, repositories.WorkspaceKey("w1"), []byte(`{"id":"w1"}`))
		assert.ErrorIs(t, err, domain.ErrDuplicateID)
	})
}

func TestResourceStore_UpdateMergesAndStamps(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store repositories.ResourceStore) {
		ctx := context.Background()
		seed(t, ctx, store)
		before := time.Now().UTC().Add(-time.Second)

		tile, err := repositories.UpdateAs[workspace.Tile](ctx, store,
			repositories.LeafKey(repositories.KindTile, "w1", "d1", "b"), repositories.Patch{"title": "Renamed"})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", tile.Title)
		assert.Equal(t, "body", tile.Content, "fields not named are untouched")
		assert.True(t, tile.UpdatedAt.After(before))
	})
}

func TestResourceStore_UpdateManyAllOrNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store repositories.ResourceStore) {
		ctx := context.Background()
		seed(t, ctx, store)

		err := store.UpdateMany(ctx, []repositories.KeyedPatch{
			{Key: repositories.LeafKey(repositories.KindTile, "w1", "d1", "a"), Patch: repositories.Patch{"orderIndex": 9}},
			{Key: repositories.LeafKey(repositories.KindTile, "w1", "d1", "missing"), Patch: repositories.Patch{"orderIndex": 1}},
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		tile, err := repositories.FindOneAs[workspace.Tile](ctx, store, repositories.LeafKey(repositories.KindTile, "w1", "d1", "a"))
		require.NoError(t, err)
		assert.Equal(t, 0, tile.OrderIndex)
	})
}

func TestResourceStore_DeleteCascades(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store repositories.ResourceStore) {
		ctx := context.Background()
		seed(t, ctx, store)

		require.NoError(t, store.DeleteOne(ctx, repositories.DashboardKey("w1", "d1")))
		_, err := store.FindOne(ctx, repositories.LeafKey(repositories.KindTile, "w1", "d1", "a"))
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// Re-creating the dashboard must not resurrect old tiles.
		require.NoError(t, store.InsertOne(ctx, repositories.DashboardKey("w1", "d1"), []byte(`{"id":"d1","name":"Again"}`)))
		tiles, err := store.FindMany(ctx, repositories.Query{Kind: repositories.KindTile, WorkspaceID: "w1", DashboardID: "d1"})
		require.NoError(t, err)
		assert.Empty(t, tiles)
	})
}

func TestSelector_OwnershipIsolation(t *testing.T) {
	sel, _ := newSelector()
	ctx := context.Background()
	alice := sel.For(models.Member("alice", models.PlanFree))
	bob := sel.For(models.Member("bob", models.PlanFree))

	seed(t, ctx, alice)
	seed(t, ctx, bob)

	_, err := bob.UpdateOne(ctx, repositories.LeafKey(repositories.KindTile, "w1", "d1", "a"), repositories.Patch{"title": "bob"})
	require.NoError(t, err)
	require.NoError(t, bob.DeleteOne(ctx, repositories.LeafKey(repositories.KindTile, "w1", "d1", "b")))

	tiles, err := repositories.FindManyAs[workspace.Tile](ctx, alice, repositories.Query{
		Kind: repositories.KindTile, WorkspaceID: "w1", DashboardID: "d1",
	})
	require.NoError(t, err)
	require.Len(t, tiles, 3)
	assert.Equal(t, "T a", tiles[0].Title)

	carol := sel.For(models.Member("carol", models.PlanFree))
	_, err = carol.FindOne(ctx, repositories.WorkspaceKey("w1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSelector_OwnerStampedOnDurableWorkspaces(t *testing.T) {
	sel, _ := newSelector()
	ctx := context.Background()
	store := sel.For(models.Member("alice", models.PlanFree))
	seed(t, ctx, store)

	ws, err := repositories.FindOneAs[workspace.Workspace](ctx, store, repositories.WorkspaceKey("w1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", ws.OwnerID)

	guest := sel.For(models.Guest("s"))
	seed(t, ctx, guest)
	ws, err = repositories.FindOneAs[workspace.Workspace](ctx, guest, repositories.WorkspaceKey("w1"))
	require.NoError(t, err)
	assert.Empty(t, ws.OwnerID)
}
