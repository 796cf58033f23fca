package services

import (
	"context"

	"insightboard/internal/domain/models"
)

// QuotaLedger tracks how many of each limited action an identity consumed
// and yields allow/deny decisions against the identity's plan.
type QuotaLedger interface {
	// Evaluate reports the current standing without mutating state.
	Evaluate(ctx context.Context, identity models.Identity, action models.Action) (models.QuotaResult, error)

	// Consume re-validates and increments in one atomic step. When the limit
	// was reached concurrently it returns Allowed=false and changes nothing.
	Consume(ctx context.Context, identity models.Identity, action models.Action) (models.QuotaResult, error)

	// Rollback undoes one Consume, floored at zero.
	Rollback(ctx context.Context, identity models.Identity, action models.Action) error

	// Reset zeroes every counter for the identity.
	Reset(ctx context.Context, identity models.Identity) error

	// Usage returns the standing of every action, for display.
	Usage(ctx context.Context, identity models.Identity) (map[models.Action]models.QuotaResult, error)
}
