package mutation

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
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

func contactKey(c services.Container, id string) repositories.Key {
	return repositories.LeafKey(repositories.KindContact, c.WorkspaceID, c.DashboardID, id)
}

func (s *mutationService) contact(ctx context.Context, id models.Identity, c services.Container, contactID string) (*workspace.Contact, error) {
	var ct *workspace.Contact
	_, err := s.aggregates.DashboardWith(ctx, id, c.WorkspaceID, c.DashboardID, func(db *workspace.Dashboard) error {
		if ct = db.Contact(contactID); ct == nil {
			return domain.NewNotFound("contact", contactID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (s *mutationService) applyContact(id models.Identity, c services.Container, ct *workspace.Contact) {
	s.aggregates.Apply(id, func(g *workspace.Graph) {
		aggregate.UpsertContact(g, c.WorkspaceID, c.DashboardID, ct.Clone())
	})
}

func (s *mutationService) CreateContact(ctx context.Context, id models.Identity, c services.Container, req *services.CreateContactRequest) (*services.Created[*workspace.Contact], error) {
	validate.Trim(&req.Name, &req.JobTitle, &req.LinkedinURL, &req.Email, &req.Phone, &req.Company)
	if err := validate.Struct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxContactNameLength)),
		validation.Field(&req.Email, is.EmailFormat),
		validation.Field(&req.LinkedinURL, is.URL),
	); err != nil {
		return nil, err
	}
	if _, err := s.aggregates.Dashboard(ctx, id, c.WorkspaceID, c.DashboardID); err != nil {
		return nil, err
	}

	now := s.now()
	contact := &workspace.Contact{
		ID:          uuid.NewString(),
		Name:        req.Name,
		JobTitle:    req.JobTitle,
		LinkedinURL: req.LinkedinURL,
		Email:       req.Email,
		Phone:       req.Phone,
		Company:     req.Company,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	store := s.aggregates.Store(id)
	res, err := s.gate(ctx, id, models.ActionCreateContact, func() error {
		return repositories.InsertAs(ctx, store, contactKey(c, contact.ID), contact)
	})
	if err != nil {
		return nil, s.logFailure("createContact", id, err)
	}

	s.applyContact(id, c, contact)
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "createContact", id, repositories.KindContact, c.WorkspaceID, c.DashboardID, contact.ID)
	return &services.Created[*workspace.Contact]{Entity: contact, Quota: res}, nil
}

func (s *mutationService) UpdateContact(ctx context.Context, id models.Identity, c services.Container, contactID string, req *services.UpdateContactRequest) (*workspace.Contact, error) {
	validate.Trim(req.Name, req.JobTitle, req.LinkedinURL, req.Email, req.Phone, req.Company)
	if err := validate.Struct(req,
		validation.Field(&req.Name, validate.NotBlank, validation.Length(1, config.MaxContactNameLength)),
		validation.Field(&req.Email, is.EmailFormat),
		validation.Field(&req.LinkedinURL, is.URL),
	); err != nil {
		return nil, err
	}
	if _, err := s.contact(ctx, id, c, contactID); err != nil {
		return nil, err
	}

	patch := repositories.Patch{}
	set := func(field string, v *string) {
		if v != nil {
			patch[field] = *v
		}
	}
	set("name", req.Name)
	set("jobTitle", req.JobTitle)
	set("linkedinUrl", req.LinkedinURL)
	set("email", req.Email)
	set("phone", req.Phone)
	set("company", req.Company)
	set("notes", req.Notes)

	updated, err := repositories.UpdateAs[workspace.Contact](ctx, s.aggregates.Store(id), contactKey(c, contactID), patch)
	if err != nil {
		return nil, s.logFailure("updateContact", id, err)
	}

	s.applyContact(id, c, updated)
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "updateContact", id, repositories.KindContact, c.WorkspaceID, c.DashboardID, contactID)
	return updated, nil
}

func (s *mutationService) DeleteContact(ctx context.Context, id models.Identity, c services.Container, contactID string) error {
	if _, err := s.contact(ctx, id, c, contactID); err != nil {
		return err
	}
	if err := s.aggregates.Store(id).DeleteOne(ctx, contactKey(c, contactID)); err != nil {
		return s.logFailure("deleteContact", id, err)
	}

	s.aggregates.Apply(id, func(g *workspace.Graph) {
		aggregate.RemoveContact(g, c.WorkspaceID, c.DashboardID, contactID)
	})
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "deleteContact", id, repositories.KindContact, c.WorkspaceID, c.DashboardID, contactID)
	return nil
}
