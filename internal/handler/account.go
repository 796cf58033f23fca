package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"insightboard/internal/auth"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/services"
	"insightboard/internal/httputil"
)

// Migrator runs the one-shot guest-to-member transition.
type Migrator interface {
	Run(ctx context.Context, guest, member models.Identity) (*services.MigrationSummary, error)
}

// AccountHandler serves identity-scoped endpoints: quota usage, the guest
// migration trigger and the guest reset.
type AccountHandler struct {
	service  services.MutationService
	ledger   services.QuotaLedger
	migrator Migrator
	logger   *slog.Logger
}

func NewAccountHandler(service services.MutationService, ledger services.QuotaLedger, migrator Migrator, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		service:  service,
		ledger:   ledger,
		migrator: migrator,
		logger:   logger,
	}
}

// GetQuota reports the standing of every limited action
// GET /api/quota
func (h *AccountHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	usage, err := h.ledger.Usage(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"plan":    id.Plan,
		"actions": usage,
	})
}

// Migrate copies the guest session named in the X-Guest-Session header into
// the authenticated member's durable storage.
// POST /api/migrations
func (h *AccountHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !id.IsMember() {
		httputil.RespondError(w, http.StatusUnauthorized, "sign in to migrate guest data")
		return
	}

	session := r.Header.Get(auth.GuestSessionHeader)
	if !auth.ValidGuestSession(session) {
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, auth.GuestSessionHeader+" header must carry a guest session",
			map[string]interface{}{"field": "guestSession"})
		return
	}

	summary, err := h.migrator.Run(r.Context(), models.Guest(session), id)
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("guest migration",
		"member", id.ID,
		"skipped", summary.Skipped,
		"aborted", summary.Aborted,
		"workspaces", summary.WorkspacesMigrated,
		"errors", len(summary.Errors),
	)

	status := http.StatusOK
	if summary.Aborted {
		status = http.StatusServiceUnavailable
	}
	httputil.RespondJSON(w, status, summary)
}

// ResetGuest clears every ephemeral workspace of the calling guest
// DELETE /api/guest
func (h *AccountHandler) ResetGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.ResetGuest(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondNoContent(w)
}

// Pinger is a backend that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness plus durable storage reachability.
type HealthHandler struct {
	durable Pinger
}

func NewHealthHandler(durable Pinger) *HealthHandler {
	return &HealthHandler{durable: durable}
}

// HealthCheck
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.durable.Ping(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	httputil.RespondJSON(w, code, map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC(),
	})
}
