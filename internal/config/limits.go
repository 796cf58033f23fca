package config

const (
	// MaxWorkspaceNameLength is the maximum length for workspace names.
	MaxWorkspaceNameLength = 255

	// MaxDashboardNameLength is the maximum length for dashboard names.
	MaxDashboardNameLength = 255

	// MaxTitleLength bounds tile and note titles.
	MaxTitleLength = 500

	// MaxContactNameLength bounds contact names.
	MaxContactNameLength = 255

	// MaxChatMessageLength bounds a single user chat message.
	MaxChatMessageLength = 8000

	// DefaultDashboardName is used when a workspace is created without one.
	DefaultDashboardName = "Dashboard"
)

// Migration caps. Entities beyond a cap are dropped with a warning.
const (
	MaxMigrationWorkspaces = 10
	MaxMigrationDashboards = 20  // per workspace
	MaxMigrationTiles      = 100 // per dashboard
	MaxMigrationNotes      = 200 // per dashboard
	MaxMigrationContacts   = 200 // per dashboard

	// MigrationParallelism bounds how many workspaces migrate concurrently.
	MigrationParallelism = 4
)
