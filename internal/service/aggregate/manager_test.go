package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/repository"
	"insightboard/internal/repository/ephemeral"
	"insightboard/internal/repository/memory"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return newSharedManagers(t, 1)[0]
}

// newSharedManagers returns n managers over the same backends, each with its
// own locks and mirror.
func newSharedManagers(t *testing.T, n int) []*Manager {
	t.Helper()
	driver := memory.NewDocumentDriver()
	kv := memory.NewKVStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	out := make([]*Manager, n)
	for i := range out {
		sel := repository.NewSelector(kv, ephemeral.NewLocks(), driver, driver, logger)
		out[i] = NewManager(sel, NewMirror(16), logger)
	}
	return out
}

var testIdentities = []models.Identity{
	models.Guest("guest-session"),
	models.Member("member-1", models.PlanFree),
}

func eachIdentity(t *testing.T, fn func(t *testing.T, m *Manager, id models.Identity)) {
	for _, id := range testIdentities {
		t.Run(string(id.Kind), func(t *testing.T) {
			fn(t, newTestManager(t), id)
		})
	}
}

func snapshot(name, website string, tiles int) *services.WorkspaceSnapshot {
	s := &services.WorkspaceSnapshot{Name: name, Website: website}
	for i := 0; i < tiles; i++ {
		s.Tiles = append(s.Tiles, services.TileInput{Title: fmt.Sprintf("Tile %d", i), Content: "body"})
	}
	return s
}

func TestCreateWorkspace_SeedsActiveDashboard(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		ws, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "acme.io", 3))
		require.NoError(t, err)
		require.Len(t, ws.Dashboards, 1)
		assert.True(t, ws.Dashboards[0].IsActive)
		for i, tile := range ws.Dashboards[0].Tiles {
			assert.Equal(t, i, tile.OrderIndex)
		}

		// Rehydrating from the store yields the same tree.
		m.Invalidate(id)
		reloaded, err := m.Workspace(ctx, id, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, ws.Dashboards[0].TileIDs(), reloaded.Dashboards[0].TileIDs())
		assert.Equal(t, 1, reloaded.ActiveCount())
	})
}

func TestCreateWorkspace_RequiresName(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateWorkspace(context.Background(), testIdentities[0], snapshot("   ", "", 0))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestResolveWorkspace(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		created, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "acme.io", 2))
		require.NoError(t, err)

		t.Run("by id", func(t *testing.T) {
			ws, reconciled, err := m.ResolveWorkspace(ctx, id, &services.WorkspaceSnapshot{ID: created.ID})
			require.NoError(t, err)
			assert.False(t, reconciled)
			assert.Equal(t, created.ID, ws.ID)
		})

		t.Run("no match", func(t *testing.T) {
			ws, _, err := m.ResolveWorkspace(ctx, id, snapshot("Other", "acme.io", 0))
			require.NoError(t, err)
			assert.Nil(t, ws)
		})

		t.Run("by name and website reconciles id", func(t *testing.T) {
			snap := snapshot("Acme", "acme.io", 0)
			snap.ID = "client-id"
			ws, reconciled, err := m.ResolveWorkspace(ctx, id, snap)
			require.NoError(t, err)
			assert.True(t, reconciled)
			assert.Equal(t, "client-id", ws.ID)
			assert.Len(t, ws.Dashboards[0].Tiles, 2)

			_, err = m.Workspace(ctx, id, created.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound, "old id no longer resolves")

			m.Invalidate(id)
			g, err := m.Graph(ctx, id)
			require.NoError(t, err)
			require.Len(t, g, 1)
			assert.Equal(t, "client-id", g[0].ID)
			assert.Equal(t, "client-id", g[0].Dashboards[0].WorkspaceID)
			assert.Len(t, g[0].Dashboards[0].Tiles, 2)
		})
	})
}

func TestActiveDashboardUniqueness(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		ws, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "", 0))
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(42))
		ids := []string{ws.Dashboards[0].ID}
		for step := 0; step < 25; step++ {
			if rng.Intn(3) == 0 {
				db, err := m.CreateDashboard(ctx, id, ws.ID, &services.CreateDashboardRequest{Name: fmt.Sprintf("D%d", step)})
				require.NoError(t, err)
				assert.True(t, db.IsActive, "new dashboards become active")
				ids = append(ids, db.ID)
			} else {
				target := ids[rng.Intn(len(ids))]
				db, err := m.SetActiveDashboard(ctx, id, ws.ID, target)
				require.NoError(t, err)
				assert.Equal(t, target, db.ID)
			}

			current, err := m.Workspace(ctx, id, ws.ID)
			require.NoError(t, err)
			require.Equal(t, 1, current.ActiveCount(), "step %d", step)
		}

		m.Invalidate(id)
		stored, err := m.Workspace(ctx, id, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.ActiveCount())
	})
}

func TestSetActiveDashboard(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		ws, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "", 0))
		require.NoError(t, err)
		first := ws.Dashboards[0].ID

		db, err := m.SetActiveDashboard(ctx, id, ws.ID, first)
		require.NoError(t, err, "already active is a no-op")
		assert.True(t, db.IsActive)

		other, err := m.CreateWorkspace(ctx, id, snapshot("Other", "", 0))
		require.NoError(t, err)
		_, err = m.SetActiveDashboard(ctx, id, ws.ID, other.Dashboards[0].ID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "dashboard of another workspace")
	})
}

func TestGetActiveDashboard_FallsBackToFirst(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := testIdentities[0]
	ws, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "", 0))
	require.NoError(t, err)

	// Simulate a tree persisted without any active flag.
	_, err = m.Store(id).UpdateOne(ctx, repositories.DashboardKey(ws.ID, ws.Dashboards[0].ID), repositories.Patch{"isActive": false})
	require.NoError(t, err)
	m.Invalidate(id)

	db, err := m.GetActiveDashboard(ctx, id, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Equal(t, ws.Dashboards[0].ID, db.ID)
}

func TestDeleteDashboard(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		ws, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "", 1))
		require.NoError(t, err)
		first := ws.Dashboards[0].ID

		err = m.DeleteDashboard(ctx, id, ws.ID, first)
		assert.ErrorIs(t, err, domain.ErrValidation, "last dashboard is kept")

		second, err := m.CreateDashboard(ctx, id, ws.ID, &services.CreateDashboardRequest{Name: "Second"})
		require.NoError(t, err)

		require.NoError(t, m.DeleteDashboard(ctx, id, ws.ID, second.ID))
		active, err := m.GetActiveDashboard(ctx, id, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, first, active.ID)
		assert.True(t, active.IsActive)
	})
}

func TestUpdateWorkspaceAndDashboard(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		ws, err := m.CreateWorkspace(ctx, id, snapshot("Acme", "", 1))
		require.NoError(t, err)

		name := "  Acme Corp "
		updated, err := m.UpdateWorkspace(ctx, id, ws.ID, &services.RenameWorkspaceRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", updated.Name)
		assert.Len(t, updated.Dashboards, 1, "children survive a rename")

		blank := " "
		_, err = m.UpdateDashboard(ctx, id, ws.ID, ws.Dashboards[0].ID, &services.UpdateDashboardRequest{Name: &blank})
		assert.ErrorIs(t, err, domain.ErrValidation)

		color := "#000000"
		db, err := m.UpdateDashboard(ctx, id, ws.ID, ws.Dashboards[0].ID, &services.UpdateDashboardRequest{BgColor: &color})
		require.NoError(t, err)
		assert.Equal(t, color, db.BgColor)
		assert.Len(t, db.Tiles, 1)
	})
}

func TestMirror_LRU(t *testing.T) {
	m := NewMirror(2)
	m.PutIfAbsent("a", workspace.Graph{{ID: "wa"}})
	m.PutIfAbsent("b", workspace.Graph{{ID: "wb"}})
	_, _ = m.Get("a")
	m.PutIfAbsent("c", workspace.Graph{{ID: "wc"}})

	_, ok := m.Get("b")
	assert.False(t, ok, "least recently used is evicted")
	_, ok = m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestMirror_ReturnsCopies(t *testing.T) {
	m := NewMirror(4)
	m.PutIfAbsent("a", workspace.Graph{{ID: "w", Dashboards: []workspace.Dashboard{{ID: "d", Tiles: []workspace.Tile{{ID: "t"}}}}}})

	g, _ := m.Get("a")
	g[0].Dashboards[0].Tiles[0].Title = "mutated"

	again, _ := m.Get("a")
	assert.Empty(t, again[0].Dashboards[0].Tiles[0].Title)
}

func TestMirror_UpsertIsIdempotent(t *testing.T) {
	m := NewMirror(4)
	m.PutIfAbsent("a", workspace.Graph{{ID: "w", Dashboards: []workspace.Dashboard{{ID: "d", WorkspaceID: "w"}}}})
	tile := workspace.Tile{ID: "t", Title: "x"}

	for i := 0; i < 3; i++ {
		m.Apply("a", func(g *workspace.Graph) { UpsertTile(g, "w", "d", tile) })
	}
	g, _ := m.Get("a")
	assert.Len(t, g[0].Dashboards[0].Tiles, 1)

	m.Apply("missing", func(g *workspace.Graph) { t.Fatal("not applied to uncached identities") })
}

func TestCreateWorkspace_NestedFailureRemovesWorkspace(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		ids := []string{"db-1", "tile-dup", "tile-dup"}
		m.newID = func() string {
			next := ids[0]
			ids = ids[1:]
			return next
		}

		snap := snapshot("Acme", "acme.io", 2)
		snap.ID = "ws-1"
		_, err := m.CreateWorkspace(ctx, id, snap)
		require.ErrorIs(t, err, domain.ErrDuplicateID)

		m.Invalidate(id)
		_, err = m.Workspace(ctx, id, "ws-1")
		require.ErrorIs(t, err, domain.ErrNotFound)
		list, err := repositories.FindManyAs[workspace.Workspace](ctx, m.Store(id), repositories.Query{Kind: repositories.KindWorkspace})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestCreateWorkspace_CollisionKeepsExisting(t *testing.T) {
	eachIdentity(t, func(t *testing.T, m *Manager, id models.Identity) {
		ctx := context.Background()
		snap := snapshot("Acme", "acme.io", 2)
		snap.ID = "ws-1"
		original, err := m.CreateWorkspace(ctx, id, snap)
		require.NoError(t, err)

		again := snapshot("Other", "other.io", 1)
		again.ID = "ws-1"
		_, err = m.CreateWorkspace(ctx, id, again)
		require.ErrorIs(t, err, domain.ErrDuplicateID)

		m.Invalidate(id)
		kept, err := m.Workspace(ctx, id, "ws-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme", kept.Name)
		require.Len(t, kept.Dashboards, 1)
		assert.Equal(t, original.Dashboards[0].TileIDs(), kept.Dashboards[0].TileIDs())
	})
}

func TestCreateWorkspace_RejectsBlankTileContent(t *testing.T) {
	m := newTestManager(t)
	snap := snapshot("Acme", "", 1)
	snap.Tiles[0].Content = " \n "
	_, err := m.CreateWorkspace(context.Background(), testIdentities[1], snap)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)
}

func TestFind_RefreshesAfterMiss(t *testing.T) {
	for _, id := range testIdentities {
		t.Run(string(id.Kind), func(t *testing.T) {
			ctx := context.Background()
			managers := newSharedManagers(t, 2)
			a, b := managers[0], managers[1]

			first, err := a.CreateWorkspace(ctx, id, snapshot("Acme", "acme.io", 0))
			require.NoError(t, err)
			_, err = b.Workspace(ctx, id, first.ID)
			require.NoError(t, err)

			second, err := a.CreateWorkspace(ctx, id, snapshot("Beta", "beta.io", 1))
			require.NoError(t, err)
			db, err := b.Dashboard(ctx, id, second.ID, second.Dashboards[0].ID)
			require.NoError(t, err)
			assert.Len(t, db.Tiles, 1)

			_, err = b.Workspace(ctx, id, "missing")
			require.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestMirror_PutIfAbsentKeepsAppliedWrites(t *testing.T) {
	m := NewMirror(4)
	stale := workspace.Graph{{ID: "w", Dashboards: []workspace.Dashboard{{ID: "d", WorkspaceID: "w"}}}}
	m.PutIfAbsent("a", stale)
	m.Apply("a", func(g *workspace.Graph) { UpsertTile(g, "w", "d", workspace.Tile{ID: "t"}) })

	got := m.PutIfAbsent("a", stale)
	require.Len(t, got[0].Dashboards[0].Tiles, 1)
	cached, ok := m.Get("a")
	require.True(t, ok)
	assert.Len(t, cached[0].Dashboards[0].Tiles, 1)
}

func TestMirror_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMirror(4).WithTTL(30 * time.Second).WithClock(func() time.Time { return now })
	m.PutIfAbsent("a", workspace.Graph{{ID: "w"}})

	now = now.Add(29 * time.Second)
	_, ok := m.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = m.Get("a")
	assert.False(t, ok, "expired entries read as missing")
	assert.Zero(t, m.Len())

	m.Apply("a", func(g *workspace.Graph) { t.Fatal("not applied to expired identities") })
	got := m.PutIfAbsent("a", workspace.Graph{{ID: "fresh"}})
	assert.Equal(t, "fresh", got[0].ID)
}
