package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"insightboard/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Workspaces string
	Dashboards string
	Tiles      string
	Notes      string
	Contacts   string
	Quotas     string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Workspaces: fmt.Sprintf("%sworkspaces", prefix),
		Dashboards: fmt.Sprintf("%sdashboards", prefix),
		Tiles:      fmt.Sprintf("%stiles", prefix),
		Notes:      fmt.Sprintf("%snotes", prefix),
		Contacts:   fmt.Sprintf("%scontacts", prefix),
		Quotas:     fmt.Sprintf("%squotas", prefix),
	}
}

// Collection maps a document collection name to its prefixed table.
func (t *TableNames) Collection(name string) (string, error) {
	switch name {
	case repositories.KindWorkspace.Collection():
		return t.Workspaces, nil
	case repositories.KindDashboard.Collection():
		return t.Dashboards, nil
	case repositories.KindTile.Collection():
		return t.Tiles, nil
	case repositories.KindNote.Collection():
		return t.Notes, nil
	case repositories.KindContact.Collection():
		return t.Contacts, nil
	}
	return "", fmt.Errorf("unknown collection %q", name)
}

// Documents lists every document table.
func (t *TableNames) Documents() []string {
	return []string{t.Workspaces, t.Dashboards, t.Tiles, t.Notes, t.Contacts}
}

// CreateConnectionPool creates a new pgx connection pool.
//
// Port 6543 is Supabase's transaction pooler (PgBouncer), which does not
// support prepared statements. For that port the pool switches to
// QueryExecModeCacheDescribe: extended protocol, so JSONB parameters still
// encode, but no server-side prepared statements. An explicit
// default_query_exec_mode in the connection string takes precedence.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
