package mutation

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
)

func validateChat(req *services.ChatRequest) error {
	if req == nil {
		return domain.NewValidation("message", "cannot be blank")
	}
	req.Message = strings.TrimSpace(req.Message)
	return validation.Validate(req.Message,
		validation.Required.Error("cannot be blank"),
		validation.RuneLength(1, config.MaxChatMessageLength),
	)
}

func (s *mutationService) model(stored string) string {
	if stored != "" {
		return stored
	}
	return s.defaultModel
}

// ChatWithTile appends the user message, asks the assistant and appends the
// reply. When the assistant or the second write fails the user message stays
// stored and the result carries ReplyError instead of Reply.
func (s *mutationService) ChatWithTile(ctx context.Context, id models.Identity, c services.Container, tileID string, req *services.ChatRequest) (*services.ChatResult[*workspace.Tile], error) {
	if err := validateChat(req); err != nil {
		return nil, asValidation("message", err)
	}
	if _, _, err := s.tile(ctx, id, c, tileID); err != nil {
		return nil, err
	}

	store := s.aggregates.Store(id)
	userMsg := workspace.Message{Role: workspace.RoleUser, Content: req.Message, Kind: workspace.MessageKindChat, CreatedAt: s.now()}
	var stored *workspace.Tile
	res, err := s.gate(ctx, id, models.ActionTileChat, func() error {
		var err error
		stored, err = repositories.UpdateAs[workspace.Tile](ctx, store, tileKey(c, tileID),
			repositories.Patch{"history": repositories.Append{userMsg}})
		return err
	})
	if err != nil {
		return nil, s.logFailure("chatWithTile", id, err)
	}
	s.applyTile(id, c, stored)

	result := &services.ChatResult[*workspace.Tile]{Entity: stored, UserMessage: userMsg, Quota: res}
	reply, err := s.assistant.Complete(ctx, &services.AssistantRequest{
		Model:   s.model(stored.Model),
		System:  tileContext(stored),
		History: priorTurns(stored.History),
		Prompt:  req.Message,
	})
	if err != nil {
		s.logger.Warn("tile chat reply failed", "identity", id.Key(), "tile_id", tileID, "error", err)
		result.ReplyError = err.Error()
		s.finishLeaf(ctx, "chatWithTile", id, repositories.KindTile, c, tileID)
		return result, nil
	}

	replyMsg := workspace.Message{Role: workspace.RoleAssistant, Content: reply.Content, Kind: workspace.MessageKindChat, CreatedAt: s.now()}
	answered, err := repositories.UpdateAs[workspace.Tile](ctx, store, tileKey(c, tileID),
		repositories.Patch{"history": repositories.Append{replyMsg}})
	if err != nil {
		s.logger.Error("tile chat reply not stored", "identity", id.Key(), "tile_id", tileID, "error", err)
		result.ReplyError = fmt.Sprintf("reply not stored: %v", err)
		s.finishLeaf(ctx, "chatWithTile", id, repositories.KindTile, c, tileID)
		return result, nil
	}

	s.applyTile(id, c, answered)
	result.Entity = answered
	result.Reply = &replyMsg
	s.finishLeaf(ctx, "chatWithTile", id, repositories.KindTile, c, tileID)
	return result, nil
}

// RegenerateTile replaces the tile's content with a fresh completion. The
// assistant runs inside the quota gate, so a failed completion releases the
// reservation and leaves the tile untouched.
func (s *mutationService) RegenerateTile(ctx context.Context, id models.Identity, c services.Container, tileID string, req *services.RegenerateRequest) (*services.Created[*workspace.Tile], error) {
	if req == nil {
		req = &services.RegenerateRequest{}
	}
	if _, _, err := s.tile(ctx, id, c, tileID); err != nil {
		return nil, err
	}
	store := s.aggregates.Store(id)
	tile, err := repositories.FindOneAs[workspace.Tile](ctx, store, tileKey(c, tileID))
	if err != nil {
		return nil, err
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = tile.Prompt
	}
	if prompt == "" {
		return nil, domain.NewValidation("prompt", "tile has no prompt to regenerate from")
	}
	model := req.Model
	if model == "" {
		model = s.model(tile.Model)
	}

	var updated *workspace.Tile
	res, err := s.gate(ctx, id, models.ActionRegenerate, func() error {
		reply, err := s.assistant.Complete(ctx, &services.AssistantRequest{
			Model:  model,
			System: tileContext(tile),
			Prompt: prompt,
		})
		if err != nil {
			return domain.Unavailable("assistant", err)
		}

		msg := workspace.Message{Role: workspace.RoleAssistant, Content: reply.Content, Kind: workspace.MessageKindRegeneration, CreatedAt: s.now()}
		patch := repositories.Patch{
			"content":  reply.Content,
			"prompt":   prompt,
			"model":    firstNonEmpty(reply.Model, model),
			"attempts": repositories.Increment(1),
			"history":  repositories.Append{msg},
		}
		if reply.TotalTokens > 0 {
			patch["totalTokens"] = reply.TotalTokens
		}
		updated, err = repositories.UpdateAs[workspace.Tile](ctx, store, tileKey(c, tileID), patch)
		return err
	})
	if err != nil {
		return nil, s.logFailure("regenerateTile", id, err)
	}

	s.applyTile(id, c, updated)
	s.finishLeaf(ctx, "regenerateTile", id, repositories.KindTile, c, tileID)
	return &services.Created[*workspace.Tile]{Entity: updated, Quota: res}, nil
}

// ChatWithContact is available to members only.
func (s *mutationService) ChatWithContact(ctx context.Context, id models.Identity, c services.Container, contactID string, req *services.ChatRequest) (*services.ChatResult[*workspace.Contact], error) {
	if id.IsGuest() {
		return nil, &domain.ForbiddenError{Message: "contact chat requires an account"}
	}
	if err := validateChat(req); err != nil {
		return nil, asValidation("message", err)
	}
	if _, err := s.contact(ctx, id, c, contactID); err != nil {
		return nil, err
	}

	store := s.aggregates.Store(id)
	userMsg := workspace.Message{Role: workspace.RoleUser, Content: req.Message, Kind: workspace.MessageKindChat, CreatedAt: s.now()}
	var stored *workspace.Contact
	res, err := s.gate(ctx, id, models.ActionContactChat, func() error {
		var err error
		stored, err = repositories.UpdateAs[workspace.Contact](ctx, store, contactKey(c, contactID),
			repositories.Patch{"chatHistory": repositories.Append{userMsg}})
		return err
	})
	if err != nil {
		return nil, s.logFailure("chatWithContact", id, err)
	}
	s.applyContact(id, c, stored)

	result := &services.ChatResult[*workspace.Contact]{Entity: stored, UserMessage: userMsg, Quota: res}
	reply, err := s.assistant.Complete(ctx, &services.AssistantRequest{
		Model:   s.defaultModel,
		System:  contactContext(stored),
		History: priorTurns(stored.ChatHistory),
		Prompt:  req.Message,
	})
	if err != nil {
		s.logger.Warn("contact chat reply failed", "identity", id.Key(), "contact_id", contactID, "error", err)
		result.ReplyError = err.Error()
		s.finishLeaf(ctx, "chatWithContact", id, repositories.KindContact, c, contactID)
		return result, nil
	}

	replyMsg := workspace.Message{Role: workspace.RoleAssistant, Content: reply.Content, Kind: workspace.MessageKindChat, CreatedAt: s.now()}
	answered, err := repositories.UpdateAs[workspace.Contact](ctx, store, contactKey(c, contactID),
		repositories.Patch{"chatHistory": repositories.Append{replyMsg}})
	if err != nil {
		s.logger.Error("contact chat reply not stored", "identity", id.Key(), "contact_id", contactID, "error", err)
		result.ReplyError = fmt.Sprintf("reply not stored: %v", err)
		s.finishLeaf(ctx, "chatWithContact", id, repositories.KindContact, c, contactID)
		return result, nil
	}

	s.applyContact(id, c, answered)
	result.Entity = answered
	result.Reply = &replyMsg
	s.finishLeaf(ctx, "chatWithContact", id, repositories.KindContact, c, contactID)
	return result, nil
}

func (s *mutationService) finishLeaf(ctx context.Context, op string, id models.Identity, kind repositories.Kind, c services.Container, resourceID string) {
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, op, id, kind, c.WorkspaceID, c.DashboardID, resourceID)
}

// priorTurns drops the user message just appended; the assistant receives
// it separately as the prompt.
func priorTurns(history []workspace.Message) []workspace.Message {
	if len(history) == 0 {
		return history
	}
	return history[:len(history)-1]
}

func tileContext(t *workspace.Tile) string {
	return fmt.Sprintf("Tile %q.\n\nCurrent content:\n%s", t.Title, t.Content)
}

func contactContext(c *workspace.Contact) string {
	out := fmt.Sprintf("Contact %q", c.Name)
	if c.JobTitle != "" {
		out += ", " + c.JobTitle
	}
	if c.Company != "" {
		out += " at " + c.Company
	}
	if c.Notes != "" {
		out += ".\n\nNotes:\n" + c.Notes
	}
	return out
}

func asValidation(field string, err error) error {
	if domain.IsKnown(err) {
		return err
	}
	return domain.NewValidation(field, err.Error())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
