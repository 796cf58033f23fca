// Package migration moves a guest's ephemeral tree into durable storage once
// the guest becomes a member.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
)

// Engine implements services.MigrationService. Every node is upserted by its
// natural key, so running the same graph twice leaves the same durable state.
type Engine struct {
	stores      repositories.StoreSelector
	logger      *slog.Logger
	parallelism int
}

func NewEngine(stores repositories.StoreSelector, logger *slog.Logger) *Engine {
	return &Engine{stores: stores, logger: logger, parallelism: config.MigrationParallelism}
}

// run collects the counts and warnings of one Migrate call. Workspaces are
// migrated concurrently, so every update goes through mu.
type run struct {
	mu      sync.Mutex
	summary services.MigrationSummary
}

func (r *run) warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Errors = append(r.summary.Errors, fmt.Sprintf(format, args...))
}

func (r *run) count(kind repositories.Kind, updated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case repositories.KindWorkspace:
		r.summary.WorkspacesMigrated++
	case repositories.KindDashboard:
		r.summary.DashboardsMigrated++
	case repositories.KindTile:
		r.summary.TilesMigrated++
	case repositories.KindNote:
		r.summary.NotesMigrated++
	case repositories.KindContact:
		r.summary.ContactsMigrated++
	}
	if updated {
		r.summary.Updated++
	}
}

// Migrate writes graph into member's durable store. It never returns an
// error: per-entity problems are recorded in the summary and processing
// continues. An unreachable backend stops the run and marks it Aborted.
func (e *Engine) Migrate(ctx context.Context, member models.Identity, graph workspace.Graph) *services.MigrationSummary {
	r := &run{summary: services.MigrationSummary{Errors: []string{}}}
	if !member.IsMember() {
		r.warn("migration target must be a member identity")
		r.summary.Aborted = true
		return &r.summary
	}

	store := e.stores.For(member)
	if err := store.Ping(ctx); err != nil {
		e.logger.Error("migration aborted: durable backend unreachable", "identity", member.Key(), "error", err)
		r.warn("durable backend unreachable: %v", err)
		r.summary.Aborted = true
		return &r.summary
	}

	workspaces := capped(r, graph, config.MaxMigrationWorkspaces, "workspaces", "graph")
	workspaces = dedupe(r, workspaces, "workspace", "graph")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, ws := range workspaces {
		if problem := checkWorkspace(ws); problem != "" {
			r.warn("workspace %s skipped: %s", ws.ID, problem)
			continue
		}
		g.Go(func() error {
			return e.migrateWorkspace(gctx, store, r, ws)
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("migration aborted", "identity", member.Key(), "error", err)
		r.warn("migration aborted: %v", err)
		r.summary.Aborted = true
	}

	e.logger.Info("migration finished",
		"identity", member.Key(),
		"workspaces", r.summary.WorkspacesMigrated,
		"dashboards", r.summary.DashboardsMigrated,
		"tiles", r.summary.TilesMigrated,
		"notes", r.summary.NotesMigrated,
		"contacts", r.summary.ContactsMigrated,
		"updated", r.summary.Updated,
		"warnings", len(r.summary.Errors),
		"aborted", r.summary.Aborted,
	)
	return &r.summary
}

// migrateWorkspace returns an error only when the run must stop.
func (e *Engine) migrateWorkspace(ctx context.Context, store repositories.ResourceStore, r *run, ws workspace.Workspace) error {
	dashboards := capped(r, ws.Dashboards, config.MaxMigrationDashboards, "dashboards", "workspace "+ws.ID)
	dashboards = dedupe(r, dashboards, "dashboard", "workspace "+ws.ID)

	header := ws.Header()
	header.OwnerID = ""
	updated, err := upsert(ctx, store, repositories.WorkspaceKey(ws.ID), header)
	if err != nil {
		if fatal(err) {
			return err
		}
		r.warn("workspace %s: %v", ws.ID, err)
		return nil
	}
	r.count(repositories.KindWorkspace, updated)

	var valid []workspace.Dashboard
	for _, db := range dashboards {
		if problem := checkDashboard(db); problem != "" {
			r.warn("dashboard %s in workspace %s skipped: %s", db.ID, ws.ID, problem)
			continue
		}
		db.WorkspaceID = ws.ID
		valid = append(valid, db)
	}
	normalized := workspace.Workspace{Dashboards: valid}
	normalized.NormalizeActive()

	for _, db := range normalized.Dashboards {
		if err := e.migrateDashboard(ctx, store, r, db); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) migrateDashboard(ctx context.Context, store repositories.ResourceStore, r *run, db workspace.Dashboard) error {
	updated, err := upsert(ctx, store, repositories.DashboardKey(db.WorkspaceID, db.ID), db.Header())
	if err != nil {
		if fatal(err) {
			return err
		}
		r.warn("dashboard %s: %v", db.ID, err)
		return nil
	}
	r.count(repositories.KindDashboard, updated)

	parent := "dashboard " + db.ID
	tiles := dedupe(r, capped(r, db.Tiles, config.MaxMigrationTiles, "tiles", parent), "tile", parent)
	for _, t := range tiles {
		if problem := checkTile(t); problem != "" {
			r.warn("tile %s in %s skipped: %s", t.ID, parent, problem)
			continue
		}
		if err := migrateLeaf(ctx, store, r, repositories.KindTile, db, t.ID, t); err != nil {
			return err
		}
	}

	notes := dedupe(r, capped(r, db.Notes, config.MaxMigrationNotes, "notes", parent), "note", parent)
	for _, n := range notes {
		if n.ID == "" {
			r.warn("note in %s skipped: missing id", parent)
			continue
		}
		if err := migrateLeaf(ctx, store, r, repositories.KindNote, db, n.ID, n); err != nil {
			return err
		}
	}

	contacts := dedupe(r, capped(r, db.Contacts, config.MaxMigrationContacts, "contacts", parent), "contact", parent)
	for _, c := range contacts {
		if problem := checkContact(c); problem != "" {
			r.warn("contact %s in %s skipped: %s", c.ID, parent, problem)
			continue
		}
		if err := migrateLeaf(ctx, store, r, repositories.KindContact, db, c.ID, c); err != nil {
			return err
		}
	}
	return nil
}

func migrateLeaf(ctx context.Context, store repositories.ResourceStore, r *run, kind repositories.Kind, db workspace.Dashboard, id string, v any) error {
	updated, err := upsert(ctx, store, repositories.LeafKey(kind, db.WorkspaceID, db.ID, id), v)
	if err != nil {
		if fatal(err) {
			return err
		}
		r.warn("%s %s in dashboard %s: %v", kind, id, db.ID, err)
		return nil
	}
	r.count(kind, updated)
	return nil
}

// upsert updates the node at key when it exists and inserts it otherwise.
// A concurrent insert surfacing as DuplicateID falls back to update.
func upsert(ctx context.Context, store repositories.ResourceStore, key repositories.Key, v any) (bool, error) {
	_, err := store.FindOne(ctx, key)
	switch {
	case err == nil:
		return true, update(ctx, store, key, v)
	case !errors.Is(err, domain.ErrNotFound):
		return false, err
	}

	if err := repositories.InsertAs(ctx, store, key, v); err != nil {
		if errors.Is(err, domain.ErrDuplicateID) {
			return true, update(ctx, store, key, v)
		}
		return false, err
	}
	return false, nil
}

func update(ctx context.Context, store repositories.ResourceStore, key repositories.Key, v any) error {
	patch, err := repositories.PatchOf(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	delete(patch, "id")
	_, err = store.UpdateOne(ctx, key, patch)
	return err
}

func fatal(err error) bool {
	return errors.Is(err, domain.ErrBackendUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// capped truncates items to limit, recording what was dropped.
func capped[T any](r *run, items []T, limit int, what, parent string) []T {
	if len(items) <= limit {
		return items
	}
	r.warn("%s: %d %s exceed the limit of %d; %d dropped", parent, len(items), what, limit, len(items)-limit)
	return items[:limit]
}

type identified interface {
	GetID() string
}

// dedupe keeps the first item for each id within one parent.
func dedupe[T identified](r *run, items []T, kind, parent string) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.GetID()
		if id != "" && seen[id] {
			r.warn("duplicate %s id %s in %s skipped", kind, id, parent)
			continue
		}
		seen[id] = true
		out = append(out, item)
	}
	return out
}

func checkWorkspace(ws workspace.Workspace) string {
	switch {
	case ws.ID == "":
		return "missing id"
	case strings.TrimSpace(ws.Name) == "":
		return "missing name"
	}
	return ""
}

func checkDashboard(db workspace.Dashboard) string {
	switch {
	case db.ID == "":
		return "missing id"
	case strings.TrimSpace(db.Name) == "":
		return "missing name"
	}
	return ""
}

func checkTile(t workspace.Tile) string {
	switch {
	case t.ID == "":
		return "missing id"
	case strings.TrimSpace(t.Title) == "":
		return "missing title"
	case strings.TrimSpace(t.Content) == "":
		return "missing content"
	}
	return ""
}

func checkContact(c workspace.Contact) string {
	switch {
	case c.ID == "":
		return "missing id"
	case strings.TrimSpace(c.Name) == "":
		return "missing name"
	}
	return ""
}
