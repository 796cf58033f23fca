package services

import (
	"context"

	models "insightboard/internal/domain/models/workspace"
)

// AssistantRequest asks the completion collaborator for one reply.
type AssistantRequest struct {
	Model   string
	System  string
	History []models.Message
	Prompt  string
}

// AssistantReply is the collaborator's answer.
type AssistantReply struct {
	Content     string
	Model       string
	TotalTokens int
}

// Assistant produces content for chat and regenerate operations. Template
// resolution and provider selection live behind this boundary.
type Assistant interface {
	Complete(ctx context.Context, req *AssistantRequest) (*AssistantReply, error)
}
