package handler

import (
	"log/slog"
	"net/http"

	"insightboard/internal/domain/services"
	"insightboard/internal/httputil"
)

// WorkspaceHandler handles workspace and dashboard HTTP requests
type WorkspaceHandler struct {
	service services.MutationService
	logger  *slog.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(service services.MutationService, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		service: service,
		logger:  logger,
	}
}

// ListWorkspaces lists the caller's workspaces
// GET /api/workspaces
func (h *WorkspaceHandler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListWorkspaces(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, list)
}

// GetOrCreateWorkspace finds the workspace matching a generation snapshot or
// creates it. 201 when created, 200 when an existing one was returned.
// POST /api/workspaces
func (h *WorkspaceHandler) GetOrCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var snap services.WorkspaceSnapshot
	if !decode(w, r, &snap) {
		return
	}

	result, err := h.service.GetOrCreateWorkspace(r.Context(), id, &snap)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.RespondJSON(w, status, result)
}

// GetWorkspace returns the full workspace tree
// GET /api/workspaces/{ws}
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	ws, err := h.service.GetWorkspace(r.Context(), id, r.PathValue("ws"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ws)
}

// UpdateWorkspace renames a workspace or changes its website
// PATCH /api/workspaces/{ws}
func (h *WorkspaceHandler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.RenameWorkspaceRequest
	if !decode(w, r, &req) {
		return
	}

	ws, err := h.service.UpdateWorkspace(r.Context(), id, r.PathValue("ws"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ws)
}

// CreateDashboard adds a dashboard to a workspace
// POST /api/workspaces/{ws}/dashboards
func (h *WorkspaceHandler) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreateDashboardRequest
	if !decode(w, r, &req) {
		return
	}

	db, err := h.service.CreateDashboard(r.Context(), id, r.PathValue("ws"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, db)
}

// GetActiveDashboard returns the active dashboard, or 204 when the workspace
// has none.
// GET /api/workspaces/{ws}/dashboards/active
func (h *WorkspaceHandler) GetActiveDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	db, err := h.service.GetActiveDashboard(r.Context(), id, r.PathValue("ws"))
	if err != nil {
		handleError(w, err)
		return
	}
	if db == nil {
		httputil.RespondNoContent(w)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, db)
}

type setActiveRequest struct {
	DashboardID string `json:"dashboardId"`
}

// SetActiveDashboard switches the active dashboard
// PUT /api/workspaces/{ws}/dashboards/active
func (h *WorkspaceHandler) SetActiveDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req setActiveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DashboardID == "" {
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, "dashboardId is required",
			map[string]interface{}{"field": "dashboardId"})
		return
	}

	db, err := h.service.SetActiveDashboard(r.Context(), id, services.Container{
		WorkspaceID: r.PathValue("ws"),
		DashboardID: req.DashboardID,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, db)
}

// GetDashboard returns one dashboard with its tiles in display order
// GET /api/workspaces/{ws}/dashboards/{db}
func (h *WorkspaceHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	db, err := h.service.GetDashboard(r.Context(), id, container(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, db)
}

// UpdateDashboard renames or recolors a dashboard
// PATCH /api/workspaces/{ws}/dashboards/{db}
func (h *WorkspaceHandler) UpdateDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.UpdateDashboardRequest
	if !decode(w, r, &req) {
		return
	}

	db, err := h.service.UpdateDashboard(r.Context(), id, container(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, db)
}

// DeleteDashboard removes a dashboard and everything on it
// DELETE /api/workspaces/{ws}/dashboards/{db}
func (h *WorkspaceHandler) DeleteDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteDashboard(r.Context(), id, container(r)); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondNoContent(w)
}
