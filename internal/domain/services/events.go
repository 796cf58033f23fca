package services

import (
	"context"
	"time"

	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
)

// MutationEvent describes one committed mutation.
type MutationEvent struct {
	Operation   string               `json:"operation"`
	Identity    models.Identity      `json:"identity"`
	Kind        repositories.Kind    `json:"kind"`
	WorkspaceID string               `json:"workspaceId"`
	DashboardID string               `json:"dashboardId,omitempty"`
	ResourceID  string               `json:"resourceId,omitempty"`
	Backend     repositories.Backend `json:"backend"`
	At          time.Time            `json:"at"`
}

// EventSink receives events after a mutation commits. Publishing is best
// effort and never affects the mutation's outcome.
type EventSink interface {
	Publish(ctx context.Context, event MutationEvent) error
}
