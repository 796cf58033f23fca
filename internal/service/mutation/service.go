// Package mutation is the single entry point for workspace mutations. Every
// operation resolves the container, gates quota, writes through the
// identity's ResourceStore and only then updates the mirror.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/service/aggregate"
)

const eventTimeout = 2 * time.Second

// mutationService implements services.MutationService
type mutationService struct {
	aggregates   *aggregate.Manager
	ledger       services.QuotaLedger
	assistant    services.Assistant
	events       services.EventSink
	defaultModel string
	logger       *slog.Logger
	now          func() time.Time
}

// Config bundles the collaborators of the mutation service. Events may be nil.
type Config struct {
	Aggregates   *aggregate.Manager
	Ledger       services.QuotaLedger
	Assistant    services.Assistant
	Events       services.EventSink
	DefaultModel string
	Logger       *slog.Logger
}

func NewMutationService(cfg Config) services.MutationService {
	return &mutationService{
		aggregates:   cfg.Aggregates,
		ledger:       cfg.Ledger,
		assistant:    cfg.Assistant,
		events:       cfg.Events,
		defaultModel: cfg.DefaultModel,
		logger:       cfg.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// gate evaluates quota, reserves one unit, then runs write. The reservation
// is released when write fails, so a failed mutation never consumes quota
// and concurrent callers can never push the counter past the limit.
func (s *mutationService) gate(ctx context.Context, id models.Identity, action models.Action, write func() error) (models.QuotaResult, error) {
	eval, err := s.ledger.Evaluate(ctx, id, action)
	if err != nil {
		return eval, err
	}
	if !eval.Allowed {
		s.logger.Warn("quota denied", "identity", id.Key(), "action", action, "used", eval.Used, "limit", eval.Limit)
		return eval, exceeded(eval)
	}

	res, err := s.ledger.Consume(ctx, id, action)
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		s.logger.Warn("quota denied on consume", "identity", id.Key(), "action", action, "used", res.Used, "limit", res.Limit)
		return res, exceeded(res)
	}

	if err := write(); err != nil {
		if rbErr := s.ledger.Rollback(ctx, id, action); rbErr != nil {
			s.logger.Error("quota rollback failed", "identity", id.Key(), "action", action, "error", rbErr)
		}
		return models.QuotaResult{}, err
	}
	return res, nil
}

func exceeded(r models.QuotaResult) error {
	return &domain.QuotaExceededError{Action: string(r.Action), Used: r.Used, Limit: r.Limit}
}

// publish hands a committed mutation to the event sink. Failures are logged
// and never change the mutation's outcome.
func (s *mutationService) publish(ctx context.Context, op string, id models.Identity, kind repositories.Kind, workspaceID, dashboardID, resourceID string) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	event := services.MutationEvent{
		Operation:   op,
		Identity:    id,
		Kind:        kind,
		WorkspaceID: workspaceID,
		DashboardID: dashboardID,
		ResourceID:  resourceID,
		Backend:     s.aggregates.Store(id).Backend(),
		At:          s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "operation", op, "identity", id.Key(), "error", err)
	}
}

// logFailure records backend failures at error level and everything else at
// debug, then returns err unchanged.
func (s *mutationService) logFailure(op string, id models.Identity, err error) error {
	if errors.Is(err, domain.ErrBackendUnavailable) {
		s.logger.Error("mutation failed", "operation", op, "identity", id.Key(), "error", err)
	} else {
		s.logger.Debug("mutation rejected", "operation", op, "identity", id.Key(), "error", err)
	}
	return err
}

// Workspaces

func (s *mutationService) ListWorkspaces(ctx context.Context, id models.Identity) ([]workspace.Workspace, error) {
	g, err := s.aggregates.Graph(ctx, id)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *mutationService) GetWorkspace(ctx context.Context, id models.Identity, workspaceID string) (*workspace.Workspace, error) {
	return s.aggregates.Workspace(ctx, id, workspaceID)
}

func (s *mutationService) GetOrCreateWorkspace(ctx context.Context, id models.Identity, snap *services.WorkspaceSnapshot) (*services.WorkspaceResult, error) {
	if snap == nil {
		return nil, domain.NewValidation("snapshot", "is required")
	}

	existing, reconciled, err := s.aggregates.ResolveWorkspace(ctx, id, snap)
	if err != nil {
		return nil, s.logFailure("getOrCreateWorkspace", id, err)
	}
	if existing != nil {
		if reconciled {
			s.publish(ctx, "reconcileWorkspace", id, repositories.KindWorkspace, existing.ID, "", existing.ID)
		}
		return &services.WorkspaceResult{Workspace: existing, Reconciled: reconciled}, nil
	}

	var created *workspace.Workspace
	res, err := s.gate(ctx, id, models.ActionCreateWorkspace, func() error {
		var err error
		created, err = s.aggregates.CreateWorkspace(ctx, id, snap)
		return err
	})
	if err != nil {
		return nil, s.logFailure("createWorkspace", id, err)
	}

	s.publish(ctx, "createWorkspace", id, repositories.KindWorkspace, created.ID, "", created.ID)
	return &services.WorkspaceResult{Workspace: created, Created: true, Quota: &res}, nil
}

func (s *mutationService) UpdateWorkspace(ctx context.Context, id models.Identity, workspaceID string, req *services.RenameWorkspaceRequest) (*workspace.Workspace, error) {
	ws, err := s.aggregates.UpdateWorkspace(ctx, id, workspaceID, req)
	if err != nil {
		return nil, s.logFailure("updateWorkspace", id, err)
	}
	s.publish(ctx, "updateWorkspace", id, repositories.KindWorkspace, workspaceID, "", workspaceID)
	return ws, nil
}

// Dashboards

func (s *mutationService) CreateDashboard(ctx context.Context, id models.Identity, workspaceID string, req *services.CreateDashboardRequest) (*workspace.Dashboard, error) {
	db, err := s.aggregates.CreateDashboard(ctx, id, workspaceID, req)
	if err != nil {
		return nil, s.logFailure("createDashboard", id, err)
	}
	s.aggregates.Touch(ctx, id, workspaceID)
	s.publish(ctx, "createDashboard", id, repositories.KindDashboard, workspaceID, db.ID, db.ID)
	return db, nil
}

func (s *mutationService) GetDashboard(ctx context.Context, id models.Identity, c services.Container) (*workspace.Dashboard, error) {
	return s.aggregates.Dashboard(ctx, id, c.WorkspaceID, c.DashboardID)
}

func (s *mutationService) GetActiveDashboard(ctx context.Context, id models.Identity, workspaceID string) (*workspace.Dashboard, error) {
	return s.aggregates.GetActiveDashboard(ctx, id, workspaceID)
}

func (s *mutationService) SetActiveDashboard(ctx context.Context, id models.Identity, c services.Container) (*workspace.Dashboard, error) {
	db, err := s.aggregates.SetActiveDashboard(ctx, id, c.WorkspaceID, c.DashboardID)
	if err != nil {
		return nil, s.logFailure("setActiveDashboard", id, err)
	}
	s.publish(ctx, "setActiveDashboard", id, repositories.KindDashboard, c.WorkspaceID, c.DashboardID, c.DashboardID)
	return db, nil
}

func (s *mutationService) UpdateDashboard(ctx context.Context, id models.Identity, c services.Container, req *services.UpdateDashboardRequest) (*workspace.Dashboard, error) {
	db, err := s.aggregates.UpdateDashboard(ctx, id, c.WorkspaceID, c.DashboardID, req)
	if err != nil {
		return nil, s.logFailure("updateDashboard", id, err)
	}
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "updateDashboard", id, repositories.KindDashboard, c.WorkspaceID, c.DashboardID, c.DashboardID)
	return db, nil
}

func (s *mutationService) DeleteDashboard(ctx context.Context, id models.Identity, c services.Container) error {
	if err := s.aggregates.DeleteDashboard(ctx, id, c.WorkspaceID, c.DashboardID); err != nil {
		return s.logFailure("deleteDashboard", id, err)
	}
	s.aggregates.Touch(ctx, id, c.WorkspaceID)
	s.publish(ctx, "deleteDashboard", id, repositories.KindDashboard, c.WorkspaceID, c.DashboardID, c.DashboardID)
	return nil
}

// Guest reset

type clearable interface {
	Clear(ctx context.Context) error
}

// ResetGuest wipes a guest's ephemeral tree. Quota counters are kept so a
// reset cannot be used to regain quota.
func (s *mutationService) ResetGuest(ctx context.Context, id models.Identity) error {
	if !id.IsGuest() {
		return &domain.ForbiddenError{Message: "only guest sessions can be reset"}
	}
	store, ok := s.aggregates.Store(id).(clearable)
	if !ok {
		return &domain.ForbiddenError{Message: "guest store cannot be reset"}
	}
	if err := store.Clear(ctx); err != nil {
		return s.logFailure("resetGuest", id, err)
	}
	s.aggregates.Invalidate(id)
	s.logger.Info("guest reset", "identity", id.Key())
	s.publish(ctx, "resetGuest", id, repositories.KindWorkspace, "", "", "")
	return nil
}
