package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"insightboard/internal/domain/models"
)

// QuotaStore keeps member quota counters in one row per (identity, action).
type QuotaStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

func NewQuotaStore(config *RepositoryConfig) *QuotaStore {
	return &QuotaStore{
		pool:   config.Pool,
		table:  config.Tables.Quotas,
		logger: config.Logger,
	}
}

func (s *QuotaStore) Counts(ctx context.Context, bucket string) (map[models.Action]int, error) {
	query := fmt.Sprintf(`SELECT action, count FROM %s WHERE identity_id = $1`, s.table)

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, query, bucket)
	if err != nil {
		return nil, mapError(err, "quota", bucket)
	}
	defer rows.Close()

	counts := make(map[models.Action]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		counts[models.Action(action)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "quota", bucket)
	}
	return counts, nil
}

// IncrementIfBelow relies on the conditional upsert: when the row is already
// at the limit the ON CONFLICT branch updates nothing and RETURNING is empty.
func (s *QuotaStore) IncrementIfBelow(ctx context.Context, bucket string, action models.Action, limit int) (int, bool, error) {
	if limit != models.Unlimited && limit <= 0 {
		current, err := s.count(ctx, bucket, action)
		return current, false, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (identity_id, action, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (identity_id, action) DO UPDATE
		SET count = %[1]s.count + 1, updated_at = now()
		WHERE $3 < 0 OR %[1]s.count < $3
		RETURNING count
	`, s.table)

	var count int
	err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, bucket, string(action), limit).Scan(&count)
	if IsPgNoRowsError(err) {
		current, err := s.count(ctx, bucket, action)
		return current, false, err
	}
	if err != nil {
		return 0, false, mapError(err, "quota", bucket)
	}
	return count, true, nil
}

func (s *QuotaStore) Decrement(ctx context.Context, bucket string, action models.Action) (int, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET count = GREATEST(count - 1, 0), updated_at = now()
		WHERE identity_id = $1 AND action = $2
		RETURNING count
	`, s.table)

	var count int
	err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, bucket, string(action)).Scan(&count)
	if IsPgNoRowsError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err, "quota", bucket)
	}
	return count, nil
}

func (s *QuotaStore) Reset(ctx context.Context, bucket string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE identity_id = $1`, s.table)
	if _, err := GetExecutor(ctx, s.pool).Exec(ctx, query, bucket); err != nil {
		return mapError(err, "quota", bucket)
	}
	s.logger.Debug("quota reset", "identity", bucket)
	return nil
}

func (s *QuotaStore) count(ctx context.Context, bucket string, action models.Action) (int, error) {
	query := fmt.Sprintf(`SELECT count FROM %s WHERE identity_id = $1 AND action = $2`, s.table)

	var count int
	err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, bucket, string(action)).Scan(&count)
	if IsPgNoRowsError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err, "quota", bucket)
	}
	return count, nil
}
