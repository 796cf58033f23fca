package postgres

import (
	"context"
	"fmt"

	"insightboard/internal/domain/models"
)

const documentTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	seq          BIGSERIAL,
	owner_id     TEXT        NOT NULL,
	workspace_id TEXT        NOT NULL DEFAULT '',
	dashboard_id TEXT        NOT NULL DEFAULT '',
	id           TEXT        NOT NULL,
	doc          JSONB       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, workspace_id, dashboard_id, id)
);
CREATE INDEX IF NOT EXISTS %[1]s_doc_idx ON %[1]s USING GIN (doc jsonb_path_ops);
`

const quotaTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	identity_id TEXT        NOT NULL,
	action      TEXT        NOT NULL,
	count       INTEGER     NOT NULL DEFAULT 0 CHECK (count >= 0),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (identity_id, action)
);
`

// EnsureSchema creates the document and quota tables when missing.
func EnsureSchema(ctx context.Context, cfg *RepositoryConfig) error {
	for _, table := range cfg.Tables.Documents() {
		if _, err := cfg.Pool.Exec(ctx, fmt.Sprintf(documentTableDDL, table)); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	if _, err := cfg.Pool.Exec(ctx, fmt.Sprintf(quotaTableDDL, cfg.Tables.Quotas)); err != nil {
		return fmt.Errorf("create table %s: %w", cfg.Tables.Quotas, err)
	}
	cfg.Logger.Info("schema ready", "tables", len(cfg.Tables.Documents())+1)
	return nil
}

// DropSchema removes every table EnsureSchema creates.
func DropSchema(ctx context.Context, cfg *RepositoryConfig) error {
	tables := append(cfg.Tables.Documents(), cfg.Tables.Quotas)
	for _, table := range tables {
		if _, err := cfg.Pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}

// ClearOwner deletes every document and quota counter of one member.
func ClearOwner(ctx context.Context, cfg *RepositoryConfig, ownerID string) (int64, error) {
	var removed int64
	for _, table := range cfg.Tables.Documents() {
		tag, err := cfg.Pool.Exec(ctx, "DELETE FROM "+table+" WHERE owner_id = $1", ownerID)
		if err != nil {
			return removed, fmt.Errorf("clear %s: %w", table, err)
		}
		removed += tag.RowsAffected()
	}
	if _, err := cfg.Pool.Exec(ctx, "DELETE FROM "+cfg.Tables.Quotas+" WHERE identity_id = $1", models.Member(ownerID, "").Key()); err != nil {
		return removed, fmt.Errorf("clear %s: %w", cfg.Tables.Quotas, err)
	}
	return removed, nil
}
