package handler

import "net/http"

// Handlers groups every HTTP handler the server mounts.
type Handlers struct {
	Health    *HealthHandler
	Workspace *WorkspaceHandler
	Tile      *TileHandler
	Note      *NoteHandler
	Contact   *ContactHandler
	Account   *AccountHandler
	Models    *ModelsHandler
}

// Register mounts the API on mux using Go 1.22 method patterns.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health.HealthCheck)

	// Workspaces
	mux.HandleFunc("GET /api/workspaces", h.Workspace.ListWorkspaces)
	mux.HandleFunc("POST /api/workspaces", h.Workspace.GetOrCreateWorkspace)
	mux.HandleFunc("GET /api/workspaces/{ws}", h.Workspace.GetWorkspace)
	mux.HandleFunc("PATCH /api/workspaces/{ws}", h.Workspace.UpdateWorkspace)

	// Dashboards ("active" is more specific than {db} and wins)
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards", h.Workspace.CreateDashboard)
	mux.HandleFunc("GET /api/workspaces/{ws}/dashboards/active", h.Workspace.GetActiveDashboard)
	mux.HandleFunc("PUT /api/workspaces/{ws}/dashboards/active", h.Workspace.SetActiveDashboard)
	mux.HandleFunc("GET /api/workspaces/{ws}/dashboards/{db}", h.Workspace.GetDashboard)
	mux.HandleFunc("PATCH /api/workspaces/{ws}/dashboards/{db}", h.Workspace.UpdateDashboard)
	mux.HandleFunc("DELETE /api/workspaces/{ws}/dashboards/{db}", h.Workspace.DeleteDashboard)

	// Tiles
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards/{db}/tiles", h.Tile.CreateTile)
	mux.HandleFunc("PUT /api/workspaces/{ws}/dashboards/{db}/tiles/order", h.Tile.ReorderTiles)
	mux.HandleFunc("PATCH /api/workspaces/{ws}/dashboards/{db}/tiles/{id}", h.Tile.UpdateTile)
	mux.HandleFunc("DELETE /api/workspaces/{ws}/dashboards/{db}/tiles/{id}", h.Tile.DeleteTile)
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards/{db}/tiles/{id}/regenerate", h.Tile.RegenerateTile)
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards/{db}/tiles/{id}/chat", h.Tile.ChatWithTile)

	// Notes
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards/{db}/notes", h.Note.CreateNote)
	mux.HandleFunc("PATCH /api/workspaces/{ws}/dashboards/{db}/notes/{id}", h.Note.UpdateNote)
	mux.HandleFunc("DELETE /api/workspaces/{ws}/dashboards/{db}/notes/{id}", h.Note.DeleteNote)

	// Contacts
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards/{db}/contacts", h.Contact.CreateContact)
	mux.HandleFunc("PATCH /api/workspaces/{ws}/dashboards/{db}/contacts/{id}", h.Contact.UpdateContact)
	mux.HandleFunc("DELETE /api/workspaces/{ws}/dashboards/{db}/contacts/{id}", h.Contact.DeleteContact)
	mux.HandleFunc("POST /api/workspaces/{ws}/dashboards/{db}/contacts/{id}/chat", h.Contact.ChatWithContact)

	// Identity-scoped
	mux.HandleFunc("GET /api/quota", h.Account.GetQuota)
	mux.HandleFunc("POST /api/migrations", h.Account.Migrate)
	mux.HandleFunc("DELETE /api/guest", h.Account.ResetGuest)

	mux.HandleFunc("GET /api/models", h.Models.GetCapabilities)
}
