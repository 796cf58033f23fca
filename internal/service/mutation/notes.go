package mutation

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/service/aggregate"
	"insightboard/internal/service/validate"
)

func noteKey(c services.Container, id string) repositories.Key {
	return repositories.LeafKey(repositories.KindNote, c.WorkspaceID, c.DashboardID, id)
}

func (s *mutationService) note(ctx context.Context, id models.Identity, c services.Container, noteID string) (*workspace.Note, error) {
	var n *workspace.Note
	_, err := s.aggregates.DashboardWith(ctx, id, c.WorkspaceID, c.DashboardID, func(db *workspace.Dashboard) error {
		if n = db.Note(noteID); n == nil {
			return domain.NewNotFound("note", noteID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *mutationService) applyNote(id models.Identity, c services.Container, n *workspace.Note) {
	s.aggregates.Apply(id, func(g *workspace.Graph) {
		aggregate.UpsertNote(g, c.WorkspaceID, c.DashboardID, *n)
	})
}

func (s *mutationService) CreateNote(ctx context.Context, id models.Identity, c services.Container, req *services.CreateNoteRequest) (*workspace.Note, error) {
	validate.Trim(&req.Title)
	if err := validate.Struct(req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, config.MaxTitleLength)),
	); err != nil {
		return nil, err
	}
	if _, err := s.aggregates.Dashboard(ctx, id, c.WorkspaceID, c.DashboardID); err != nil {
		return nil, err
	}

	now := s.now()
	note := &workspace.Note{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repositories.InsertAs(ctx, s.aggregates.Store(id), noteKey(c, note.ID), note); err != nil {
		return nil, s.logFailure("createNote", id, err)
	}

	s.applyNote(id, c, note)
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "createNote", id, repositories.KindNote, c.WorkspaceID, c.DashboardID, note.ID)
	return note, nil
}

func (s *mutationService) UpdateNote(ctx context.Context, id models.Identity, c services.Container, noteID string, req *services.UpdateNoteRequest) (*workspace.Note, error) {
	validate.Trim(req.Title)
	if err := validate.Struct(req,
		validation.Field(&req.Title, validate.NotBlank, validation.Length(1, config.MaxTitleLength)),
	); err != nil {
		return nil, err
	}
	if _, err := s.note(ctx, id, c, noteID); err != nil {
		return nil, err
	}

	patch := repositories.Patch{}
	if req.Title != nil {
		patch["title"] = *req.Title
	}
	if req.Content != nil {
		patch["content"] = *req.Content
	}
	updated, err := repositories.UpdateAs[workspace.Note](ctx, s.aggregates.Store(id), noteKey(c, noteID), patch)
	if err != nil {
		return nil, s.logFailure("updateNote", id, err)
	}

	s.applyNote(id, c, updated)
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "updateNote", id, repositories.KindNote, c.WorkspaceID, c.DashboardID, noteID)
	return updated, nil
}

func (s *mutationService) DeleteNote(ctx context.Context, id models.Identity, c services.Container, noteID string) error {
	if _, err := s.note(ctx, id, c, noteID); err != nil {
		return err
	}
	if err := s.aggregates.Store(id).DeleteOne(ctx, noteKey(c, noteID)); err != nil {
		return s.logFailure("deleteNote", id, err)
	}

	s.aggregates.Apply(id, func(g *workspace.Graph) {
		aggregate.RemoveNote(g, c.WorkspaceID, c.DashboardID, noteID)
	})
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "deleteNote", id, repositories.KindNote, c.WorkspaceID, c.DashboardID, noteID)
	return nil
}
