package handler

import (
	"log/slog"
	"net/http"

	"insightboard/internal/domain/services"
	"insightboard/internal/httputil"
)

// ContactHandler handles dashboard contact HTTP requests
type ContactHandler struct {
	service services.MutationService
	logger  *slog.Logger
}

func NewContactHandler(service services.MutationService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{service: service, logger: logger}
}

// CreateContact
// POST /api/workspaces/{ws}/dashboards/{db}/contacts
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreateContactRequest
	if !decode(w, r, &req) {
		return
	}

	created, err := h.service.CreateContact(r.Context(), id, container(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, created)
}

// UpdateContact
// PATCH /api/workspaces/{ws}/dashboards/{db}/contacts/{id}
func (h *ContactHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.UpdateContactRequest
	if !decode(w, r, &req) {
		return
	}

	contact, err := h.service.UpdateContact(r.Context(), id, container(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, contact)
}

// DeleteContact
// DELETE /api/workspaces/{ws}/dashboards/{db}/contacts/{id}
func (h *ContactHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteContact(r.Context(), id, container(r), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondNoContent(w)
}

// ChatWithContact asks the assistant about a contact. Members only.
// POST /api/workspaces/{ws}/dashboards/{db}/contacts/{id}/chat
func (h *ContactHandler) ChatWithContact(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.ChatRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.ChatWithContact(r.Context(), id, container(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
