// Package aggregate owns the Workspace -> Dashboard containment tree: it
// resolves containers, keeps the single-active-dashboard invariant and
// mirrors confirmed writes in memory.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/service/validate"
)

// Manager is the aggregate manager. It writes through the ResourceStore
// selected for each identity and applies the confirmed result to the Mirror.
type Manager struct {
	stores repositories.StoreSelector
	mirror *Mirror
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewManager(stores repositories.StoreSelector, mirror *Mirror, logger *slog.Logger) *Manager {
	return &Manager{
		stores: stores,
		mirror: mirror,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Store returns the ResourceStore for identity.
func (m *Manager) Store(identity models.Identity) repositories.ResourceStore {
	return m.stores.For(identity)
}

// Apply updates the mirrored tree after a confirmed write.
func (m *Manager) Apply(identity models.Identity, fn func(g *workspace.Graph)) {
	m.mirror.Apply(identity.Key(), fn)
}

// Invalidate drops the mirrored tree so the next read rehydrates.
func (m *Manager) Invalidate(identity models.Identity) {
	m.mirror.Invalidate(identity.Key())
}

// Graph returns the identity's full tree from the mirror, hydrating it from
// the store when it is not cached or has expired.
func (m *Manager) Graph(ctx context.Context, identity models.Identity) (workspace.Graph, error) {
	if g, ok := m.mirror.Get(identity.Key()); ok {
		return g, nil
	}
	return m.hydrate(ctx, identity)
}

func (m *Manager) hydrate(ctx context.Context, identity models.Identity) (workspace.Graph, error) {
	g, err := Hydrate(ctx, m.Store(identity))
	if err != nil {
		return nil, err
	}
	m.logger.Debug("aggregate hydrated", "identity", identity.Key(), "workspaces", len(g))
	return m.mirror.PutIfAbsent(identity.Key(), g), nil
}

// Find runs fn against the identity's tree. When fn reports NotFound on a
// cached tree, the tree is read again from the store and fn runs once more,
// so nodes written through another instance are found.
func (m *Manager) Find(ctx context.Context, identity models.Identity, fn func(g workspace.Graph) error) error {
	g, cached := m.mirror.Get(identity.Key())
	if !cached {
		var err error
		if g, err = m.hydrate(ctx, identity); err != nil {
			return err
		}
	}
	err := fn(g)
	if err == nil || !cached || !isNotFound(err) {
		return err
	}

	m.mirror.Invalidate(identity.Key())
	if g, err = m.hydrate(ctx, identity); err != nil {
		return err
	}
	m.logger.Debug("aggregate refreshed after miss", "identity", identity.Key())
	return fn(g)
}

// Workspace returns one full workspace tree.
func (m *Manager) Workspace(ctx context.Context, identity models.Identity, workspaceID string) (*workspace.Workspace, error) {
	var ws *workspace.Workspace
	err := m.Find(ctx, identity, func(g workspace.Graph) error {
		ws = findWorkspace(g, workspaceID)
		if ws == nil {
			return domain.NewNotFound("workspace", workspaceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Dashboard resolves a container. Missing and foreign containers both
// report NotFound.
func (m *Manager) Dashboard(ctx context.Context, identity models.Identity, workspaceID, dashboardID string) (*workspace.Dashboard, error) {
	return m.DashboardWith(ctx, identity, workspaceID, dashboardID, nil)
}

// DashboardWith resolves a container and runs check on it. check reports
// NotFound for a missing leaf, which is retried against a fresh tree like a
// missing container.
func (m *Manager) DashboardWith(ctx context.Context, identity models.Identity, workspaceID, dashboardID string, check func(db *workspace.Dashboard) error) (*workspace.Dashboard, error) {
	var db *workspace.Dashboard
	err := m.Find(ctx, identity, func(g workspace.Graph) error {
		ws := findWorkspace(g, workspaceID)
		if ws == nil {
			return domain.NewNotFound("workspace", workspaceID)
		}
		db = ws.Dashboard(dashboardID)
		if db == nil {
			return domain.NewNotFound("dashboard", dashboardID)
		}
		if check != nil {
			return check(db)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ResolveWorkspace finds the workspace a snapshot refers to: by id, else by
// (name, website). When matched by pair and the snapshot carries a different
// id, the workspace is re-keyed to that id. Returns nil when nothing matches.
func (m *Manager) ResolveWorkspace(ctx context.Context, identity models.Identity, snap *services.WorkspaceSnapshot) (*workspace.Workspace, bool, error) {
	if snap.ID != "" {
		ws, err := m.Workspace(ctx, identity, snap.ID)
		if err == nil {
			return ws, false, nil
		}
		if !isNotFound(err) {
			return nil, false, err
		}
	}

	name, website := strings.TrimSpace(snap.Name), strings.TrimSpace(snap.Website)
	if name == "" {
		return nil, false, nil
	}
	match := map[string]any{"name": name}
	if website != "" {
		match["website"] = website
	}
	candidates, err := repositories.FindManyAs[workspace.Workspace](ctx, m.Store(identity), repositories.Query{
		Kind:  repositories.KindWorkspace,
		Match: match,
	})
	if err != nil {
		return nil, false, err
	}
	// An empty website is stored as an absent field, which Match cannot express.
	var matches []workspace.Workspace
	for _, ws := range candidates {
		if ws.Website == website {
			matches = append(matches, ws)
		}
	}
	if len(matches) == 0 {
		return nil, false, nil
	}
	if len(matches) > 1 {
		m.logger.Error("ambiguous workspace match; using the oldest",
			"identity", identity.Key(), "name", name, "website", website, "matches", len(matches))
	}

	found, err := m.Workspace(ctx, identity, matches[0].ID)
	if err != nil {
		return nil, false, err
	}
	if snap.ID == "" || snap.ID == found.ID {
		return found, false, nil
	}

	moved, err := m.rekey(ctx, identity, found, snap.ID)
	if err != nil {
		return nil, false, err
	}
	return moved, true, nil
}

// CreateWorkspace creates a workspace with one active dashboard seeded with
// the snapshot's tiles.
func (m *Manager) CreateWorkspace(ctx context.Context, identity models.Identity, snap *services.WorkspaceSnapshot) (*workspace.Workspace, error) {
	validate.Trim(&snap.ID, &snap.Name, &snap.Website, &snap.DashboardName)
	if err := validate.Struct(snap,
		validation.Field(&snap.Name, validation.Required, validation.Length(1, config.MaxWorkspaceNameLength)),
		validation.Field(&snap.DashboardName, validation.Length(0, config.MaxDashboardNameLength)),
	); err != nil {
		return nil, err
	}

	now := m.now()
	id := snap.ID
	if id == "" {
		id = m.newID()
	}
	dashboardName := snap.DashboardName
	if dashboardName == "" {
		dashboardName = config.DefaultDashboardName
	}

	db := workspace.Dashboard{
		ID:          m.newID(),
		WorkspaceID: id,
		Name:        dashboardName,
		TemplateID:  snap.TemplateID,
		BgColor:     workspace.DefaultBgColor,
		Tiles:       make([]workspace.Tile, 0, len(snap.Tiles)),
		Notes:       []workspace.Note{},
		Contacts:    []workspace.Contact{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, in := range snap.Tiles {
		tile, err := m.NewTile(&in, i)
		if err != nil {
			return nil, err
		}
		db.Tiles = append(db.Tiles, *tile)
	}

	ws := workspace.Workspace{
		ID:         id,
		Name:       snap.Name,
		Website:    snap.Website,
		CreatedAt:  now,
		UpdatedAt:  now,
		Dashboards: []workspace.Dashboard{db},
	}

	store := m.Store(identity)
	if err := m.writeTree(ctx, store, &ws); err != nil {
		return nil, err
	}
	if identity.IsMember() {
		ws.OwnerID = identity.ID
	}

	m.Apply(identity, func(g *workspace.Graph) { upsertWorkspace(g, ws.Clone()) })
	m.logger.Info("workspace created",
		"identity", identity.Key(), "workspace_id", ws.ID, "tiles", len(db.Tiles), "backend", store.Backend())
	return &ws, nil
}

// NewTile validates a tile payload and builds the tile at orderIndex.
func (m *Manager) NewTile(in *services.TileInput, orderIndex int) (*workspace.Tile, error) {
	validate.Trim(&in.Title, &in.Prompt, &in.Model)
	if err := validate.Struct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, config.MaxTitleLength)),
		validation.Field(&in.Content, validation.Required, validate.NotBlank),
	); err != nil {
		return nil, err
	}
	now := m.now()
	tile := &workspace.Tile{
		ID:         m.newID(),
		Title:      in.Title,
		Content:    in.Content,
		Prompt:     in.Prompt,
		Model:      in.Model,
		OrderIndex: orderIndex,
		CreatedAt:  now,
		UpdatedAt:  now,
		Attempts:   1,
		History:    []workspace.Message{},
	}
	if in.TotalTokens != nil {
		n := *in.TotalTokens
		tile.TotalTokens = &n
	}
	return tile, nil
}

// UpdateWorkspace renames a workspace or changes its website.
func (m *Manager) UpdateWorkspace(ctx context.Context, identity models.Identity, workspaceID string, req *services.RenameWorkspaceRequest) (*workspace.Workspace, error) {
	validate.Trim(req.Name, req.Website)
	if err := validate.Struct(req,
		validation.Field(&req.Name, validate.NotBlank, validation.Length(1, config.MaxWorkspaceNameLength)),
	); err != nil {
		return nil, err
	}
	if _, err := m.Workspace(ctx, identity, workspaceID); err != nil {
		return nil, err
	}

	patch := repositories.Patch{}
	if req.Name != nil {
		patch["name"] = *req.Name
	}
	if req.Website != nil {
		patch["website"] = *req.Website
	}
	updated, err := repositories.UpdateAs[workspace.Workspace](ctx, m.Store(identity), repositories.WorkspaceKey(workspaceID), patch)
	if err != nil {
		return nil, err
	}
	m.Apply(identity, func(g *workspace.Graph) { upsertWorkspace(g, *updated) })
	return m.Workspace(ctx, identity, workspaceID)
}

// CreateDashboard appends a dashboard and makes it the only active one.
func (m *Manager) CreateDashboard(ctx context.Context, identity models.Identity, workspaceID string, req *services.CreateDashboardRequest) (*workspace.Dashboard, error) {
	validate.Trim(&req.Name, &req.TemplateID, &req.BgColor)
	if err := validate.Struct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxDashboardNameLength)),
	); err != nil {
		return nil, err
	}
	ws, err := m.Workspace(ctx, identity, workspaceID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	db := workspace.Dashboard{
		ID:          m.newID(),
		WorkspaceID: workspaceID,
		Name:        req.Name,
		TemplateID:  req.TemplateID,
		BgColor:     req.BgColor,
		Tiles:       []workspace.Tile{},
		Notes:       []workspace.Note{},
		Contacts:    []workspace.Contact{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if db.BgColor == "" {
		db.BgColor = workspace.DefaultBgColor
	}

	// Insert inactive, then flip flags in one batch so a failure between the
	// two writes still leaves exactly one active dashboard.
	store := m.Store(identity)
	if err := repositories.InsertAs(ctx, store, repositories.DashboardKey(workspaceID, db.ID), db.Header()); err != nil {
		return nil, err
	}
	m.Apply(identity, func(g *workspace.Graph) { upsertDashboard(g, db.Clone()) })

	ws.Dashboards = append(ws.Dashboards, db)
	if err := m.activate(ctx, identity, ws, db.ID); err != nil {
		return nil, err
	}
	m.logger.Info("dashboard created", "identity", identity.Key(), "workspace_id", workspaceID, "dashboard_id", db.ID)
	return m.Dashboard(ctx, identity, workspaceID, db.ID)
}

// SetActiveDashboard activates dashboardID and demotes its siblings. It is a
// no-op when the dashboard is already the only active one.
func (m *Manager) SetActiveDashboard(ctx context.Context, identity models.Identity, workspaceID, dashboardID string) (*workspace.Dashboard, error) {
	ws, err := m.Workspace(ctx, identity, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.Dashboard(dashboardID) == nil {
		return nil, domain.NewNotFound("dashboard", dashboardID)
	}
	if err := m.activate(ctx, identity, ws, dashboardID); err != nil {
		return nil, err
	}
	return m.Dashboard(ctx, identity, workspaceID, dashboardID)
}

// GetActiveDashboard returns the flagged-active dashboard, the first one when
// none is flagged, or nil for a workspace without dashboards.
func (m *Manager) GetActiveDashboard(ctx context.Context, identity models.Identity, workspaceID string) (*workspace.Dashboard, error) {
	ws, err := m.Workspace(ctx, identity, workspaceID)
	if err != nil {
		return nil, err
	}
	return ws.ActiveDashboard(), nil
}

// UpdateDashboard renames a dashboard or changes its background.
func (m *Manager) UpdateDashboard(ctx context.Context, identity models.Identity, workspaceID, dashboardID string, req *services.UpdateDashboardRequest) (*workspace.Dashboard, error) {
	validate.Trim(req.Name, req.BgColor)
	if err := validate.Struct(req,
		validation.Field(&req.Name, validate.NotBlank, validation.Length(1, config.MaxDashboardNameLength)),
		validation.Field(&req.BgColor, validate.NotBlank),
	); err != nil {
		return nil, err
	}
	if _, err := m.Dashboard(ctx, identity, workspaceID, dashboardID); err != nil {
		return nil, err
	}

	patch := repositories.Patch{}
	if req.Name != nil {
		patch["name"] = *req.Name
	}
	if req.BgColor != nil {
		patch["bgColor"] = *req.BgColor
	}
	updated, err := repositories.UpdateAs[workspace.Dashboard](ctx, m.Store(identity), repositories.DashboardKey(workspaceID, dashboardID), patch)
	if err != nil {
		return nil, err
	}
	m.Apply(identity, func(g *workspace.Graph) { upsertDashboard(g, *updated) })
	return m.Dashboard(ctx, identity, workspaceID, dashboardID)
}

// DeleteDashboard removes a dashboard and its contents. The last dashboard
// of a workspace cannot be deleted; deleting the active one activates the
// first remaining dashboard.
func (m *Manager) DeleteDashboard(ctx context.Context, identity models.Identity, workspaceID, dashboardID string) error {
	ws, err := m.Workspace(ctx, identity, workspaceID)
	if err != nil {
		return err
	}
	target := ws.Dashboard(dashboardID)
	if target == nil {
		return domain.NewNotFound("dashboard", dashboardID)
	}
	if len(ws.Dashboards) == 1 {
		return domain.NewValidation("dashboardId", "cannot delete the last dashboard of a workspace")
	}
	wasActive := ws.ActiveDashboard().ID == dashboardID

	if err := m.Store(identity).DeleteOne(ctx, repositories.DashboardKey(workspaceID, dashboardID)); err != nil {
		return err
	}
	m.Apply(identity, func(g *workspace.Graph) { removeDashboard(g, workspaceID, dashboardID) })
	ws.Dashboards, _ = workspace.Remove(ws.Dashboards, dashboardID)

	if wasActive {
		if err := m.activate(ctx, identity, ws, ws.Dashboards[0].ID); err != nil {
			return err
		}
	}
	m.logger.Info("dashboard deleted", "identity", identity.Key(), "workspace_id", workspaceID, "dashboard_id", dashboardID)
	return nil
}

// Touch stamps the workspace's updatedAt after a descendant changed. The
// descendant write has already committed, so failures are only logged.
func (m *Manager) Touch(ctx context.Context, identity models.Identity, workspaceID string) {
	updated, err := repositories.UpdateAs[workspace.Workspace](ctx, m.Store(identity), repositories.WorkspaceKey(workspaceID), repositories.Patch{})
	if err != nil {
		m.logger.Warn("workspace touch failed", "identity", identity.Key(), "workspace_id", workspaceID, "error", err)
		return
	}
	m.Apply(identity, func(g *workspace.Graph) { upsertWorkspace(g, *updated) })
}

// activate writes isActive for every dashboard whose flag differs from the
// target state, in one batch.
func (m *Manager) activate(ctx context.Context, identity models.Identity, ws *workspace.Workspace, dashboardID string) error {
	var patches []repositories.KeyedPatch
	for _, db := range ws.Dashboards {
		want := db.ID == dashboardID
		if db.IsActive != want {
			patches = append(patches, repositories.KeyedPatch{
				Key:   repositories.DashboardKey(ws.ID, db.ID),
				Patch: repositories.Patch{"isActive": want},
			})
		}
	}
	if len(patches) == 0 {
		return nil
	}
	if err := m.Store(identity).UpdateMany(ctx, patches); err != nil {
		return err
	}
	m.Apply(identity, func(g *workspace.Graph) {
		if mirrored := findWorkspace(*g, ws.ID); mirrored != nil {
			mirrored.Activate(dashboardID)
		}
	})
	m.logger.Debug("dashboard activated", "identity", identity.Key(), "workspace_id", ws.ID, "dashboard_id", dashboardID)
	return nil
}

// rekey moves a workspace tree to newID: copy first, then delete the
// original, so a failure never loses the original.
func (m *Manager) rekey(ctx context.Context, identity models.Identity, ws *workspace.Workspace, newID string) (*workspace.Workspace, error) {
	moved := ws.Clone()
	moved.ID = newID
	moved.UpdatedAt = m.now()
	for i := range moved.Dashboards {
		moved.Dashboards[i].WorkspaceID = newID
	}

	store := m.Store(identity)
	if err := m.writeTree(ctx, store, &moved); err != nil {
		return nil, fmt.Errorf("re-key workspace %s: %w", ws.ID, err)
	}
	if err := store.DeleteOne(ctx, repositories.WorkspaceKey(ws.ID)); err != nil {
		if cleanupErr := store.DeleteOne(ctx, repositories.WorkspaceKey(newID)); cleanupErr != nil {
			m.logger.Error("re-key cleanup failed", "workspace_id", newID, "error", cleanupErr)
		}
		return nil, fmt.Errorf("re-key workspace %s: %w", ws.ID, err)
	}

	m.Apply(identity, func(g *workspace.Graph) {
		removeWorkspace(g, ws.ID)
		upsertWorkspace(g, moved.Header())
		for _, db := range moved.Dashboards {
			upsertDashboard(g, db.Clone())
		}
	})
	m.logger.Warn("workspace re-keyed after (name, website) match",
		"identity", identity.Key(), "from", ws.ID, "to", newID)
	return &moved, nil
}

// writeTree inserts a full workspace tree. When a write below the workspace
// fails the partial tree is removed again. A collision on the workspace
// itself leaves the existing workspace alone.
func (m *Manager) writeTree(ctx context.Context, store repositories.ResourceStore, ws *workspace.Workspace) error {
	if err := repositories.InsertAs(ctx, store, repositories.WorkspaceKey(ws.ID), ws.Header()); err != nil {
		return err
	}
	err := func() error {
		for _, db := range ws.Dashboards {
			if err := repositories.InsertAs(ctx, store, repositories.DashboardKey(ws.ID, db.ID), db.Header()); err != nil {
				return err
			}
			for _, t := range db.Tiles {
				if err := repositories.InsertAs(ctx, store, repositories.LeafKey(repositories.KindTile, ws.ID, db.ID, t.ID), t); err != nil {
					return err
				}
			}
			for _, n := range db.Notes {
				if err := repositories.InsertAs(ctx, store, repositories.LeafKey(repositories.KindNote, ws.ID, db.ID, n.ID), n); err != nil {
					return err
				}
			}
			for _, c := range db.Contacts {
				if err := repositories.InsertAs(ctx, store, repositories.LeafKey(repositories.KindContact, ws.ID, db.ID, c.ID), c); err != nil {
					return err
				}
			}
		}
		return nil
	}()
	if err != nil {
		if cleanupErr := store.DeleteOne(ctx, repositories.WorkspaceKey(ws.ID)); cleanupErr != nil && !isNotFound(cleanupErr) {
			m.logger.Error("partial workspace cleanup failed", "workspace_id", ws.ID, "error", cleanupErr)
		}
	}
	return err
}
