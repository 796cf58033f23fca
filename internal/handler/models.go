package handler

import (
	"log/slog"
	"net/http"

	"insightboard/internal/capabilities"
	"insightboard/internal/httputil"
)

// ModelsHandler lists the assistant models a client may pass to regenerate.
type ModelsHandler struct {
	registry  *capabilities.Registry
	providers []string
	logger    *slog.Logger
}

// NewModelsHandler exposes the models of the given configured providers.
func NewModelsHandler(registry *capabilities.Registry, providers []string, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{registry: registry, providers: providers, logger: logger}
}

// ProviderResponse represents a provider with its models
type ProviderResponse struct {
	ID     string                           `json:"id"`
	Models []capabilities.ModelCapabilities `json:"models"`
}

// GetCapabilities
// GET /api/models
func (h *ModelsHandler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	providers := make([]ProviderResponse, 0, len(h.providers))
	for _, name := range h.providers {
		models, err := h.registry.ListProviderModels(name)
		if err != nil {
			h.logger.Warn("no model catalog for provider", "provider", name)
			continue
		}
		providers = append(providers, ProviderResponse{ID: name, Models: models})
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"providers": providers})
}
