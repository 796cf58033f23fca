package handler

import (
	"log/slog"
	"net/http"

	"insightboard/internal/domain/services"
	"insightboard/internal/httputil"
)

// NoteHandler handles dashboard note HTTP requests
type NoteHandler struct {
	service services.MutationService
	logger  *slog.Logger
}

func NewNoteHandler(service services.MutationService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{service: service, logger: logger}
}

// CreateNote
// POST /api/workspaces/{ws}/dashboards/{db}/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}

	note, err := h.service.CreateNote(r.Context(), id, container(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, note)
}

// UpdateNote
// PATCH /api/workspaces/{ws}/dashboards/{db}/notes/{id}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}

	note, err := h.service.UpdateNote(r.Context(), id, container(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, note)
}

// DeleteNote
// DELETE /api/workspaces/{ws}/dashboards/{db}/notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNote(r.Context(), id, container(r), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondNoContent(w)
}
