// Package quota implements the per-identity action ledger.
package quota

import (
	"context"
	"fmt"
	"log/slog"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
)

// Ledger implements services.QuotaLedger. Member counters live in the
// durable store, guest counters in the guest KV store; limits come from the
// plan table keyed by the identity's plan tier.
type Ledger struct {
	plans   *config.Plans
	members repositories.QuotaStore
	guests  repositories.QuotaStore
	logger  *slog.Logger
}

func NewLedger(plans *config.Plans, members, guests repositories.QuotaStore, logger *slog.Logger) *Ledger {
	return &Ledger{plans: plans, members: members, guests: guests, logger: logger}
}

func (l *Ledger) store(identity models.Identity) repositories.QuotaStore {
	if identity.IsMember() {
		return l.members
	}
	return l.guests
}

func (l *Ledger) tier(identity models.Identity) string {
	if identity.IsGuest() {
		return models.PlanGuest
	}
	return identity.Plan
}

func (l *Ledger) Evaluate(ctx context.Context, identity models.Identity, action models.Action) (models.QuotaResult, error) {
	if !action.Valid() {
		return models.QuotaResult{}, domain.NewValidation("action", fmt.Sprintf("unknown action %q", action))
	}
	limit := l.plans.Limit(l.tier(identity), action)

	counts, err := l.store(identity).Counts(ctx, identity.Key())
	if err != nil {
		// Fail closed: the caller sees a denial and the cause.
		l.logger.Error("quota evaluate failed", "identity", identity.Key(), "action", action, "error", err)
		return models.QuotaResult{Action: action, Limit: limit}, l.unavailable(err)
	}
	return models.NewQuotaResult(action, counts[action], limit), nil
}

func (l *Ledger) Consume(ctx context.Context, identity models.Identity, action models.Action) (models.QuotaResult, error) {
	if !action.Valid() {
		return models.QuotaResult{}, domain.NewValidation("action", fmt.Sprintf("unknown action %q", action))
	}
	limit := l.plans.Limit(l.tier(identity), action)

	count, ok, err := l.store(identity).IncrementIfBelow(ctx, identity.Key(), action, limit)
	if err != nil {
		l.logger.Error("quota consume failed", "identity", identity.Key(), "action", action, "error", err)
		return models.QuotaResult{Action: action, Limit: limit}, l.unavailable(err)
	}

	result := models.NewQuotaResult(action, count, limit)
	result.Allowed = ok
	if !ok {
		l.logger.Warn("quota exhausted", "identity", identity.Key(), "action", action, "used", count, "limit", limit)
	}
	return result, nil
}

func (l *Ledger) Rollback(ctx context.Context, identity models.Identity, action models.Action) error {
	count, err := l.store(identity).Decrement(ctx, identity.Key(), action)
	if err != nil {
		return l.unavailable(err)
	}
	l.logger.Debug("quota rolled back", "identity", identity.Key(), "action", action, "used", count)
	return nil
}

func (l *Ledger) Reset(ctx context.Context, identity models.Identity) error {
	if err := l.store(identity).Reset(ctx, identity.Key()); err != nil {
		return l.unavailable(err)
	}
	l.logger.Info("quota reset", "identity", identity.Key())
	return nil
}

// Usage returns every action's standing. A guest store failure degrades to
// zero usage since the result is display-only; member failures are returned.
func (l *Ledger) Usage(ctx context.Context, identity models.Identity) (map[models.Action]models.QuotaResult, error) {
	counts, err := l.store(identity).Counts(ctx, identity.Key())
	if err != nil {
		if identity.IsMember() {
			return nil, l.unavailable(err)
		}
		l.logger.Warn("guest quota unavailable, showing zero usage", "identity", identity.Key(), "error", err)
		counts = map[models.Action]int{}
	}

	limits := l.plans.Limits(l.tier(identity))
	out := make(map[models.Action]models.QuotaResult, len(models.Actions))
	for _, action := range models.Actions {
		out[action] = models.NewQuotaResult(action, counts[action], limits[action])
	}
	return out, nil
}

// unavailable makes sure store failures surface as BackendUnavailable.
func (l *Ledger) unavailable(err error) error {
	if domain.IsKnown(err) {
		return err
	}
	return domain.Unavailable("quota", err)
}
