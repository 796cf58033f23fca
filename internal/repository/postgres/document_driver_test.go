package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
)

// ============================================================================
// UNIT TESTS - Query building and error mapping
// ============================================================================

func TestBuildWhere(t *testing.T) {
	tests := []struct {
		name     string
		filter   repositories.Filter
		needID   bool
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:     "owner only",
			filter:   repositories.Filter{OwnerID: "u1"},
			wantSQL:  "owner_id = $1",
			wantArgs: []any{"u1"},
		},
		{
			name:     "full leaf key",
			filter:   repositories.Filter{OwnerID: "u1", WorkspaceID: "w", DashboardID: "d", ID: "t"},
			needID:   true,
			wantSQL:  "owner_id = $1 AND workspace_id = $2 AND dashboard_id = $3 AND id = $4",
			wantArgs: []any{"u1", "w", "d", "t"},
		},
		{
			name:     "match becomes containment",
			filter:   repositories.Filter{OwnerID: "u1", Match: map[string]any{"name": "Acme"}},
			wantSQL:  "owner_id = $1 AND doc @> $2::jsonb",
			wantArgs: []any{"u1", `{"name":"Acme"}`},
		},
		{
			name:    "missing owner",
			filter:  repositories.Filter{ID: "x"},
			wantErr: true,
		},
		{
			name:    "missing id when required",
			filter:  repositories.Filter{OwnerID: "u1"},
			needID:  true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildWhere(tt.filter, tt.needID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestPatchExpr(t *testing.T) {
	patch, err := repositories.EncodePatch(repositories.Patch{
		"title":    "Market",
		"history":  repositories.Append{map[string]string{"role": "user"}},
		"attempts": repositories.Increment(1),
	})
	require.NoError(t, err)

	expr, args, err := patchExpr(patch, []any{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "doc || $2::jsonb || jsonb_build_object("+
		"$3::text, COALESCE(NULLIF(doc->$3::text, 'null'::jsonb), '[]'::jsonb) || $4::jsonb, "+
		"$5::text, to_jsonb(COALESCE((doc->>$5::text)::bigint, 0) + $6::bigint))", expr)
	assert.Equal(t, []any{"u1", `{"title":"Market"}`, "history", `[{"role":"user"}]`, "attempts", 1}, args)

	expr, args, err = patchExpr(repositories.DocumentPatch{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "doc || $1::jsonb", expr)
	assert.Equal(t, []any{"{}"}, args)
}

func TestTableNames_Collection(t *testing.T) {
	tables := NewTableNames("test_")

	got, err := tables.Collection(repositories.KindTile.Collection())
	require.NoError(t, err)
	assert.Equal(t, "test_tiles", got)

	_, err = tables.Collection("folders")
	assert.Error(t, err)
	assert.Len(t, tables.Documents(), 5)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "tiles", "t1"))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows, "tiles", "t1"), domain.ErrNotFound)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23505"}, "tiles", "t1"), domain.ErrDuplicateID)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "08006"}, "tiles", "t1"), domain.ErrBackendUnavailable)
	assert.ErrorIs(t, mapError(fmt.Errorf("query: %w", context.DeadlineExceeded), "tiles", ""), domain.ErrBackendUnavailable)

	other := errors.New("syntax error")
	assert.Equal(t, other, mapError(other, "tiles", ""))
}

// ============================================================================
// INTEGRATION TESTS - require TEST_DATABASE_URL
// ============================================================================

func setupDB(t *testing.T) *RepositoryConfig {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := CreateConnectionPool(ctx, url)
	require.NoError(t, err)

	cfg := &RepositoryConfig{
		Pool:   pool,
		Tables: NewTableNames("it_"),
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	require.NoError(t, EnsureSchema(ctx, cfg))

	t.Cleanup(func() {
		for _, table := range append(cfg.Tables.Documents(), cfg.Tables.Quotas) {
			_, _ = pool.Exec(ctx, "TRUNCATE "+table)
		}
		pool.Close()
	})
	return cfg
}

func TestDocumentDriver_Integration(t *testing.T) {
	cfg := setupDB(t)
	ctx := context.Background()
	driver := NewDocumentDriver(cfg)
	f := repositories.Filter{OwnerID: "u1", WorkspaceID: "w1", ID: "w1"}

	require.NoError(t, driver.InsertOne(ctx, "workspaces", f, []byte(`{"id":"w1","name":"Acme"}`)))
	assert.ErrorIs(t, driver.InsertOne(ctx, "workspaces", f, []byte(`{}`)), domain.ErrDuplicateID)

	patch, err := repositories.EncodePatch(repositories.Patch{"website": "acme.io"})
	require.NoError(t, err)
	merged, err := driver.UpdateOne(ctx, "workspaces", f, patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"w1","name":"Acme","website":"acme.io"}`, string(merged))

	appendPatch, err := repositories.EncodePatch(repositories.Patch{
		"log":   repositories.Append{"a"},
		"count": repositories.Increment(2),
	})
	require.NoError(t, err)
	_, err = driver.UpdateOne(ctx, "workspaces", f, appendPatch)
	require.NoError(t, err)
	merged, err = driver.UpdateOne(ctx, "workspaces", f, appendPatch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"w1","name":"Acme","website":"acme.io","log":["a","a"],"count":4}`, string(merged))

	docs, err := driver.Find(ctx, "workspaces", repositories.Filter{OwnerID: "u1", Match: map[string]any{"name": "Acme"}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = driver.FindOne(ctx, "workspaces", repositories.Filter{OwnerID: "u2", ID: "w1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, driver.DeleteOne(ctx, "workspaces", f))
	assert.ErrorIs(t, driver.DeleteOne(ctx, "workspaces", f), domain.ErrNotFound)
}

func TestQuotaStore_Integration(t *testing.T) {
	cfg := setupDB(t)
	ctx := context.Background()
	store := NewQuotaStore(cfg)

	for i := 1; i <= 2; i++ {
		n, ok, err := store.IncrementIfBelow(ctx, "member:u1", models.ActionCreateTile, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, n)
	}
	n, ok, err := store.IncrementIfBelow(ctx, "member:u1", models.ActionCreateTile, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, n)

	n, err = store.Decrement(ctx, "member:u1", models.ActionCreateTile)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Reset(ctx, "member:u1"))
	counts, err := store.Counts(ctx, "member:u1")
	require.NoError(t, err)
	assert.Empty(t, counts)
}
