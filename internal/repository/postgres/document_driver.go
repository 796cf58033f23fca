package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"insightboard/internal/domain"
	"insightboard/internal/domain/repositories"
)

// DocumentDriver stores documents as JSONB rows, one table per collection,
// keyed by (owner_id, workspace_id, dashboard_id, id).
type DocumentDriver struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewDocumentDriver(config *RepositoryConfig) *DocumentDriver {
	return &DocumentDriver{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func (d *DocumentDriver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "database", "")
	}
	return nil
}

func (d *DocumentDriver) FindOne(ctx context.Context, collection string, f repositories.Filter) (json.RawMessage, error) {
	table, err := d.tables.Collection(collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(f, true)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s`, table, where)

	var doc []byte
	if err := GetExecutor(ctx, d.pool).QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		return nil, mapError(err, collection, f.ID)
	}
	return doc, nil
}

func (d *DocumentDriver) Find(ctx context.Context, collection string, f repositories.Filter) ([]json.RawMessage, error) {
	table, err := d.tables.Collection(collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(f, false)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY seq`, table, where)

	rows, err := GetExecutor(ctx, d.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, collection, "")
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, collection, "")
	}
	return docs, nil
}

func (d *DocumentDriver) InsertOne(ctx context.Context, collection string, f repositories.Filter, doc json.RawMessage) error {
	table, err := d.tables.Collection(collection)
	if err != nil {
		return err
	}
	if f.OwnerID == "" || f.ID == "" {
		return fmt.Errorf("insert %s: owner id and id are required", collection)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, workspace_id, dashboard_id, id, doc)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, table)

	_, err = GetExecutor(ctx, d.pool).Exec(ctx, query,
		f.OwnerID, f.WorkspaceID, f.DashboardID, f.ID, string(doc))
	if err != nil {
		return mapError(err, collection, f.ID)
	}
	return nil
}

// UpdateOne merges the patch into doc. Append and Increment fields are
// computed from the row's current doc inside the same UPDATE, so they never
// lose a concurrent writer's change.
func (d *DocumentDriver) UpdateOne(ctx context.Context, collection string, f repositories.Filter, patch repositories.DocumentPatch) (json.RawMessage, error) {
	table, err := d.tables.Collection(collection)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(f, true)
	if err != nil {
		return nil, err
	}
	set, args, err := patchExpr(patch, args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET doc = %s, updated_at = now()
		WHERE %s
		RETURNING doc
	`, table, set, where)

	var doc []byte
	if err := GetExecutor(ctx, d.pool).QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		return nil, mapError(err, collection, f.ID)
	}
	return doc, nil
}

func (d *DocumentDriver) DeleteOne(ctx context.Context, collection string, f repositories.Filter) error {
	n, err := d.delete(ctx, collection, f, true)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound(collection, f.ID)
	}
	return nil
}

func (d *DocumentDriver) DeleteMany(ctx context.Context, collection string, f repositories.Filter) (int64, error) {
	return d.delete(ctx, collection, f, false)
}

func (d *DocumentDriver) delete(ctx context.Context, collection string, f repositories.Filter, needID bool) (int64, error) {
	table, err := d.tables.Collection(collection)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(f, needID)
	if err != nil {
		return 0, err
	}

	tag, err := GetExecutor(ctx, d.pool).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, table, where), args...)
	if err != nil {
		return 0, mapError(err, collection, f.ID)
	}
	return tag.RowsAffected(), nil
}

// patchExpr renders the new doc value, appending its parameters to args.
func patchExpr(patch repositories.DocumentPatch, args []any) (string, []any, error) {
	param := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	setJSON, err := patch.SetJSON()
	if err != nil {
		return "", nil, fmt.Errorf("encode patch: %w", err)
	}
	expr := "doc || " + param(string(setJSON)) + "::jsonb"

	var pairs []string
	for _, field := range patch.AppendFields() {
		name := param(field)
		pairs = append(pairs, fmt.Sprintf("%s::text, COALESCE(NULLIF(doc->%s::text, 'null'::jsonb), '[]'::jsonb) || %s::jsonb",
			name, name, param(string(patch.Append[field]))))
	}
	for _, field := range patch.IncrementFields() {
		name := param(field)
		pairs = append(pairs, fmt.Sprintf("%s::text, to_jsonb(COALESCE((doc->>%s::text)::bigint, 0) + %s::bigint)",
			name, name, param(patch.Increment[field])))
	}
	if len(pairs) > 0 {
		expr += " || jsonb_build_object(" + strings.Join(pairs, ", ") + ")"
	}
	return expr, args, nil
}

// buildWhere renders f as a parameterised WHERE clause. owner_id is always
// constrained; Match becomes a JSONB containment test.
func buildWhere(f repositories.Filter, needID bool) (string, []any, error) {
	if f.OwnerID == "" {
		return "", nil, fmt.Errorf("owner id is required")
	}
	if needID && f.ID == "" {
		return "", nil, fmt.Errorf("id is required")
	}

	conds := []string{"owner_id = $1"}
	args := []any{f.OwnerID}
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.WorkspaceID != "" {
		add("workspace_id", f.WorkspaceID)
	}
	if f.DashboardID != "" {
		add("dashboard_id", f.DashboardID)
	}
	if f.ID != "" {
		add("id", f.ID)
	}
	if len(f.Match) > 0 {
		match, err := json.Marshal(f.Match)
		if err != nil {
			return "", nil, fmt.Errorf("encode match: %w", err)
		}
		args = append(args, string(match))
		conds = append(conds, fmt.Sprintf("doc @> $%d::jsonb", len(args)))
	}
	return strings.Join(conds, " AND "), args, nil
}
