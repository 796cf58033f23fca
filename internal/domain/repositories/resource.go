package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"insightboard/internal/domain/models"
)

// Backend names the storage class behind a ResourceStore.
type Backend string

const (
	BackendEphemeral Backend = "ephemeral"
	BackendDurable   Backend = "durable"
)

// Kind is a node type in the Workspace -> Dashboard -> {Tile, Note, Contact} tree.
type Kind string

const (
	KindWorkspace Kind = "workspace"
	KindDashboard Kind = "dashboard"
	KindTile      Kind = "tile"
	KindNote      Kind = "note"
	KindContact   Kind = "contact"
)

// Collection returns the durable collection name for k.
func (k Kind) Collection() string {
	return string(k) + "s"
}

// IsLeaf reports whether k lives inside a dashboard.
func (k Kind) IsLeaf() bool {
	return k == KindTile || k == KindNote || k == KindContact
}

// Key addresses one node by composite key.
//
//   - workspace: ID
//   - dashboard: WorkspaceID, ID
//   - tile/note/contact: WorkspaceID, DashboardID, ID
type Key struct {
	Kind        Kind
	WorkspaceID string
	DashboardID string
	ID          string
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s/%s/%s)", k.Kind, k.WorkspaceID, k.DashboardID, k.ID)
}

// WorkspaceKey, DashboardKey and LeafKey build well-formed keys.
func WorkspaceKey(id string) Key { return Key{Kind: KindWorkspace, WorkspaceID: id, ID: id} }

func DashboardKey(workspaceID, id string) Key {
	return Key{Kind: KindDashboard, WorkspaceID: workspaceID, ID: id}
}

func LeafKey(kind Kind, workspaceID, dashboardID, id string) Key {
	return Key{Kind: kind, WorkspaceID: workspaceID, DashboardID: dashboardID, ID: id}
}

// Query selects the children of one container.
//
//   - workspace: all of the caller's workspaces; Match filters by field equality
//   - dashboard: WorkspaceID
//   - tile/note/contact: WorkspaceID, DashboardID
type Query struct {
	Kind        Kind
	WorkspaceID string
	DashboardID string
	Match       map[string]any
}

// Patch is a partial update keyed by JSON field name. Fields not named are
// left untouched.
type Patch map[string]any

// KeyedPatch pairs a patch with its target for batch updates.
type KeyedPatch struct {
	Key   Key
	Patch Patch
}

// ResourceStore is the backend-agnostic adapter the mutation orchestrator
// writes through. Both the ephemeral and durable implementations return the
// same documents and the same domain errors:
//   - domain.ErrNotFound when a key or its container does not exist
//   - domain.ErrDuplicateID when InsertOne collides with an existing id
//   - domain.ErrBackendUnavailable when the backend cannot be reached
//
// Node documents never embed children: a workspace document has no
// dashboards, a dashboard document has no tiles, notes or contacts.
type ResourceStore interface {
	Backend() Backend

	// Ping verifies the backend accepts reads and writes.
	Ping(ctx context.Context) error

	FindOne(ctx context.Context, key Key) (json.RawMessage, error)
	FindMany(ctx context.Context, q Query) ([]json.RawMessage, error)
	InsertOne(ctx context.Context, key Key, doc json.RawMessage) error

	// UpdateOne merges patch into the stored document, stamps updatedAt and
	// returns the merged document.
	UpdateOne(ctx context.Context, key Key, patch Patch) (json.RawMessage, error)

	// UpdateMany applies every patch or none of them where the backend
	// supports it.
	UpdateMany(ctx context.Context, patches []KeyedPatch) error

	// DeleteOne removes the node and everything it contains.
	DeleteOne(ctx context.Context, key Key) error
}

// FindOneAs decodes a single document into T.
func FindOneAs[T any](ctx context.Context, s ResourceStore, key Key) (*T, error) {
	raw, err := s.FindOne(ctx, key)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &out, nil
}

// FindManyAs decodes every matching document into T.
func FindManyAs[T any](ctx context.Context, s ResourceStore, q Query) ([]T, error) {
	raws, err := s.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.Kind, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// InsertAs encodes v and inserts it under key.
func InsertAs(ctx context.Context, s ResourceStore, key Key, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.InsertOne(ctx, key, doc)
}

// UpdateAs applies patch and decodes the merged document into T.
func UpdateAs[T any](ctx context.Context, s ResourceStore, key Key, patch Patch) (*T, error) {
	raw, err := s.UpdateOne(ctx, key, patch)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &out, nil
}

// PatchOf converts v into a Patch naming every field v encodes.
func PatchOf(v any) (Patch, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// StoreSelector picks the ResourceStore for an identity: ephemeral for
// guests, durable scoped to the member id for members.
type StoreSelector interface {
	For(identity models.Identity) ResourceStore
}
