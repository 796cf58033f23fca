package mutation

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/service/aggregate"
	"insightboard/internal/service/validate"
)

func tileKey(c services.Container, id string) repositories.Key {
	return repositories.LeafKey(repositories.KindTile, c.WorkspaceID, c.DashboardID, id)
}

// tile resolves the container and the tile inside it.
func (s *mutationService) tile(ctx context.Context, id models.Identity, c services.Container, tileID string) (*workspace.Dashboard, *workspace.Tile, error) {
	var t *workspace.Tile
	db, err := s.aggregates.DashboardWith(ctx, id, c.WorkspaceID, c.DashboardID, func(db *workspace.Dashboard) error {
		if t = db.Tile(tileID); t == nil {
			return domain.NewNotFound("tile", tileID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return db, t, nil
}

func (s *mutationService) applyTile(id models.Identity, c services.Container, t *workspace.Tile) {
	s.aggregates.Apply(id, func(g *workspace.Graph) {
		aggregate.UpsertTile(g, c.WorkspaceID, c.DashboardID, t.Clone())
	})
}

func (s *mutationService) CreateTile(ctx context.Context, id models.Identity, c services.Container, req *services.CreateTileRequest) (*services.Created[*workspace.Tile], error) {
	db, err := s.aggregates.Dashboard(ctx, id, c.WorkspaceID, c.DashboardID)
	if err != nil {
		return nil, err
	}
	tile, err := s.aggregates.NewTile(req, db.NextOrderIndex())
	if err != nil {
		return nil, err
	}

	store := s.aggregates.Store(id)
	res, err := s.gate(ctx, id, models.ActionCreateTile, func() error {
		return repositories.InsertAs(ctx, store, tileKey(c, tile.ID), tile)
	})
	if err != nil {
		return nil, s.logFailure("createTile", id, err)
	}

	s.applyTile(id, c, tile)
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "createTile", id, repositories.KindTile, c.WorkspaceID, c.DashboardID, tile.ID)
	return &services.Created[*workspace.Tile]{Entity: tile, Quota: res}, nil
}

func (s *mutationService) UpdateTile(ctx context.Context, id models.Identity, c services.Container, tileID string, req *services.UpdateTileRequest) (*workspace.Tile, error) {
	validate.Trim(req.Title)
	if err := validate.Struct(req,
		validation.Field(&req.Title, validate.NotBlank, validation.Length(1, config.MaxTitleLength)),
		validation.Field(&req.Content, validate.NotBlank),
	); err != nil {
		return nil, err
	}
	if _, _, err := s.tile(ctx, id, c, tileID); err != nil {
		return nil, err
	}

	patch := repositories.Patch{}
	if req.Title != nil {
		patch["title"] = *req.Title
	}
	if req.Content != nil {
		patch["content"] = *req.Content
	}
	updated, err := repositories.UpdateAs[workspace.Tile](ctx, s.aggregates.Store(id), tileKey(c, tileID), patch)
	if err != nil {
		return nil, s.logFailure("updateTile", id, err)
	}

	s.applyTile(id, c, updated)
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "updateTile", id, repositories.KindTile, c.WorkspaceID, c.DashboardID, tileID)
	return updated, nil
}

func (s *mutationService) DeleteTile(ctx context.Context, id models.Identity, c services.Container, tileID string) error {
	if _, _, err := s.tile(ctx, id, c, tileID); err != nil {
		return err
	}
	if err := s.aggregates.Store(id).DeleteOne(ctx, tileKey(c, tileID)); err != nil {
		return s.logFailure("deleteTile", id, err)
	}

	s.aggregates.Apply(id, func(g *workspace.Graph) {
		aggregate.RemoveTile(g, c.WorkspaceID, c.DashboardID, tileID)
	})
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "deleteTile", id, repositories.KindTile, c.WorkspaceID, c.DashboardID, tileID)
	return nil
}

// ReorderTiles rewrites orderIndex so that it equals each tile's position in
// req.Order. The order must name every tile of the dashboard exactly once.
// Only tiles whose index changes are written, so repeating a reorder is a
// no-op.
func (s *mutationService) ReorderTiles(ctx context.Context, id models.Identity, c services.Container, req *services.ReorderTilesRequest) ([]workspace.Tile, error) {
	db, err := s.aggregates.Dashboard(ctx, id, c.WorkspaceID, c.DashboardID)
	if err != nil {
		return nil, err
	}
	if err := checkPermutation(db.TileIDs(), req.Order); err != nil {
		return nil, err
	}

	position := make(map[string]int, len(req.Order))
	for i, tileID := range req.Order {
		position[tileID] = i
	}

	var patches []repositories.KeyedPatch
	for _, t := range db.Tiles {
		if t.OrderIndex != position[t.ID] {
			patches = append(patches, repositories.KeyedPatch{
				Key:   tileKey(c, t.ID),
				Patch: repositories.Patch{"orderIndex": position[t.ID]},
			})
		}
	}
	if len(patches) > 0 {
		if err := s.aggregates.Store(id).UpdateMany(ctx, patches); err != nil {
			return nil, s.logFailure("reorderTiles", id, err)
		}
	}

	now := s.now()
	s.aggregates.Apply(id, func(g *workspace.Graph) {
		mirrored := aggregate.DashboardOf(*g, c.WorkspaceID, c.DashboardID)
		if mirrored == nil {
			return
		}
		for i := range mirrored.Tiles {
			t := &mirrored.Tiles[i]
			if t.OrderIndex != position[t.ID] {
				t.OrderIndex = position[t.ID]
				t.UpdatedAt = now
			}
		}
		mirrored.SortTiles()
	})

	if len(patches) > 0 {
		s.aggregates.Touch(ctx, id, c.WorkspaceID)
		s.publish(ctx, "reorderTiles", id, repositories.KindTile, c.WorkspaceID, c.DashboardID, "")
	}

	updated, err := s.aggregates.Dashboard(ctx, id, c.WorkspaceID, c.DashboardID)
	if err != nil {
		return nil, err
	}
	return updated.Tiles, nil
}

// checkPermutation reports ids that order is missing and ids it names that
// are unknown or repeated.
func checkPermutation(current, order []string) error {
	want := make(map[string]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	seen := make(map[string]bool, len(order))
	var extra []string
	for _, id := range order {
		if !want[id] || seen[id] {
			extra = append(extra, id)
			continue
		}
		seen[id] = true
	}
	var missing []string
	for _, id := range current {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return &domain.InvalidOrderError{Missing: missing, Extra: extra}
	}
	return nil
}
