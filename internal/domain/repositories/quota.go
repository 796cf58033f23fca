package repositories

import (
	"context"

	"insightboard/internal/domain/models"
)

// QuotaStore persists per-bucket action counters.
type QuotaStore interface {
	// Counts returns every counter for bucket; missing actions are zero.
	Counts(ctx context.Context, bucket string) (map[models.Action]int, error)

	// IncrementIfBelow atomically increments the counter when it is below
	// limit (models.Unlimited always increments). It returns the counter
	// value after the call and whether an increment happened.
	IncrementIfBelow(ctx context.Context, bucket string, action models.Action, limit int) (count int, ok bool, err error)

	// Decrement lowers the counter by one, floored at zero.
	Decrement(ctx context.Context, bucket string, action models.Action) (int, error)

	// Reset zeroes every counter for bucket.
	Reset(ctx context.Context, bucket string) error
}
