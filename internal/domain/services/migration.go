package services

import (
	"context"

	"insightboard/internal/domain/models"
	workspace "insightboard/internal/domain/models/workspace"
)

// MigrationSummary reports what one migration run did. Migrated counts
// include entities that already existed and were updated in place; Updated
// counts only those.
type MigrationSummary struct {
	WorkspacesMigrated int      `json:"workspacesMigrated"`
	DashboardsMigrated int      `json:"dashboardsMigrated"`
	TilesMigrated      int      `json:"tilesMigrated"`
	ContactsMigrated   int      `json:"contactsMigrated"`
	NotesMigrated      int      `json:"notesMigrated"`
	Updated            int      `json:"updated"`
	Errors             []string `json:"errors"`
	// Aborted is set when the durable backend became unreachable and the run
	// stopped early. The counts describe the partial run.
	Aborted bool `json:"aborted"`
	// Skipped is set when the transition had already run for this session.
	Skipped bool `json:"skipped,omitempty"`
}

// MigrationService moves a guest's ephemeral graph into durable storage.
type MigrationService interface {
	// Migrate never returns an error; failures are reported in the summary.
	Migrate(ctx context.Context, member models.Identity, graph workspace.Graph) *MigrationSummary
}
