package repositories

import (
	"context"
	"encoding/json"
)

// Filter scopes a durable document operation. OwnerID is mandatory for every
// call; the remaining scope columns are matched only when non-empty. Match
// holds field-equality conditions on the document body.
type Filter struct {
	OwnerID     string
	WorkspaceID string
	DashboardID string
	ID          string
	Match       map[string]any
}

// DocumentDriver is the generic durable backend: JSON documents in named
// collections, addressed by owner-scoped filters.
//
// FindOne, UpdateOne and DeleteOne require Filter.ID. InsertOne reports
// domain.ErrDuplicateID when (owner, workspace, dashboard, id) already exists.
type DocumentDriver interface {
	Ping(ctx context.Context) error
	FindOne(ctx context.Context, collection string, f Filter) (json.RawMessage, error)
	Find(ctx context.Context, collection string, f Filter) ([]json.RawMessage, error)
	InsertOne(ctx context.Context, collection string, f Filter, doc json.RawMessage) error
	// UpdateOne applies patch to the stored document in a single statement
	// and returns the result.
	UpdateOne(ctx context.Context, collection string, f Filter, patch DocumentPatch) (json.RawMessage, error)
	DeleteOne(ctx context.Context, collection string, f Filter) error
	DeleteMany(ctx context.Context, collection string, f Filter) (int64, error)
}
