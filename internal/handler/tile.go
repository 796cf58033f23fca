package handler

import (
	"log/slog"
	"net/http"

	"insightboard/internal/domain/services"
	"insightboard/internal/httputil"
)

// TileHandler handles tile HTTP requests
type TileHandler struct {
	service services.MutationService
	logger  *slog.Logger
}

// NewTileHandler creates a new tile handler
func NewTileHandler(service services.MutationService, logger *slog.Logger) *TileHandler {
	return &TileHandler{
		service: service,
		logger:  logger,
	}
}

// CreateTile appends a tile to a dashboard
// POST /api/workspaces/{ws}/dashboards/{db}/tiles
func (h *TileHandler) CreateTile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreateTileRequest
	if !decode(w, r, &req) {
		return
	}

	created, err := h.service.CreateTile(r.Context(), id, container(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, created)
}

// ReorderTiles applies a full permutation of the dashboard's tile ids
// PUT /api/workspaces/{ws}/dashboards/{db}/tiles/order
func (h *TileHandler) ReorderTiles(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.ReorderTilesRequest
	if !decode(w, r, &req) {
		return
	}

	tiles, err := h.service.ReorderTiles(r.Context(), id, container(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tiles)
}

// UpdateTile patches a tile's title or content
// PATCH /api/workspaces/{ws}/dashboards/{db}/tiles/{id}
func (h *TileHandler) UpdateTile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.UpdateTileRequest
	if !decode(w, r, &req) {
		return
	}

	tile, err := h.service.UpdateTile(r.Context(), id, container(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tile)
}

// DeleteTile removes a tile
// DELETE /api/workspaces/{ws}/dashboards/{db}/tiles/{id}
func (h *TileHandler) DeleteTile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTile(r.Context(), id, container(r), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondNoContent(w)
}

// RegenerateTile re-runs the tile's prompt through the assistant. The body is
// optional; an empty body keeps the stored prompt and model.
// POST /api/workspaces/{ws}/dashboards/{db}/tiles/{id}/regenerate
func (h *TileHandler) RegenerateTile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.RegenerateRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	result, err := h.service.RegenerateTile(r.Context(), id, container(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// ChatWithTile sends one chat turn about a tile
// POST /api/workspaces/{ws}/dashboards/{db}/tiles/{id}/chat
func (h *TileHandler) ChatWithTile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.ChatRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.ChatWithTile(r.Context(), id, container(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
