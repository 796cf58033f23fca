package aggregate

import (
	"context"
	"errors"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
)

// Hydrate reads an identity's complete tree through its ResourceStore.
func Hydrate(ctx context.Context, store repositories.ResourceStore) (workspace.Graph, error) {
	workspaces, err := repositories.FindManyAs[workspace.Workspace](ctx, store, repositories.Query{Kind: repositories.KindWorkspace})
	if err != nil {
		return nil, err
	}

	g := make(workspace.Graph, 0, len(workspaces))
	for _, ws := range workspaces {
		dashboards, err := repositories.FindManyAs[workspace.Dashboard](ctx, store, repositories.Query{
			Kind: repositories.KindDashboard, WorkspaceID: ws.ID,
		})
		if err != nil {
			return nil, err
		}
		ws.Dashboards = make([]workspace.Dashboard, 0, len(dashboards))
		for _, db := range dashboards {
			if err := hydrateDashboard(ctx, store, &db); err != nil {
				return nil, err
			}
			ws.Dashboards = append(ws.Dashboards, db)
		}
		g = append(g, ws)
	}
	return g, nil
}

func hydrateDashboard(ctx context.Context, store repositories.ResourceStore, db *workspace.Dashboard) error {
	q := func(kind repositories.Kind) repositories.Query {
		return repositories.Query{Kind: kind, WorkspaceID: db.WorkspaceID, DashboardID: db.ID}
	}
	var err error
	if db.Tiles, err = repositories.FindManyAs[workspace.Tile](ctx, store, q(repositories.KindTile)); err != nil {
		return err
	}
	if db.Notes, err = repositories.FindManyAs[workspace.Note](ctx, store, q(repositories.KindNote)); err != nil {
		return err
	}
	if db.Contacts, err = repositories.FindManyAs[workspace.Contact](ctx, store, q(repositories.KindContact)); err != nil {
		return err
	}
	db.SortTiles()
	return nil
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
