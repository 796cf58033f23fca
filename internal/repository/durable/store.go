// Package durable implements the member-side ResourceStore over a
// DocumentDriver. Every driver call carries the owner id.
package durable

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"insightboard/internal/domain/repositories"
)

// Store is the durable repositories.ResourceStore for one member.
type Store struct {
	driver  repositories.DocumentDriver
	tx      repositories.TransactionManager
	ownerID string
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore scopes driver to ownerID. tx may be nil, in which case batch and
// cascade writes run without a transaction.
func NewStore(driver repositories.DocumentDriver, tx repositories.TransactionManager, ownerID string, logger *slog.Logger) *Store {
	return &Store{driver: driver, tx: tx, ownerID: ownerID, logger: logger, now: time.Now}
}

func (s *Store) Backend() repositories.Backend { return repositories.BackendDurable }

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

func (s *Store) filter(key repositories.Key) repositories.Filter {
	return repositories.Filter{
		OwnerID:     s.ownerID,
		WorkspaceID: key.WorkspaceID,
		DashboardID: key.DashboardID,
		ID:          key.ID,
	}
}

func (s *Store) FindOne(ctx context.Context, key repositories.Key) (json.RawMessage, error) {
	return s.driver.FindOne(ctx, key.Kind.Collection(), s.filter(key))
}

func (s *Store) FindMany(ctx context.Context, q repositories.Query) ([]json.RawMessage, error) {
	if err := s.requireContainer(ctx, q.Kind, q.WorkspaceID, q.DashboardID); err != nil {
		return nil, err
	}
	return s.driver.Find(ctx, q.Kind.Collection(), repositories.Filter{
		OwnerID:     s.ownerID,
		WorkspaceID: q.WorkspaceID,
		DashboardID: q.DashboardID,
		Match:       q.Match,
	})
}

func (s *Store) InsertOne(ctx context.Context, key repositories.Key, doc json.RawMessage) error {
	if err := s.requireContainer(ctx, key.Kind, key.WorkspaceID, key.DashboardID); err != nil {
		return err
	}
	doc, err := s.prepare(key, doc)
	if err != nil {
		return err
	}
	return s.driver.InsertOne(ctx, key.Kind.Collection(), s.filter(key), doc)
}

func (s *Store) UpdateOne(ctx context.Context, key repositories.Key, patch repositories.Patch) (json.RawMessage, error) {
	fields := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		fields[k] = v
	}
	for _, child := range []string{"id", "dashboards", "tiles", "notes", "contacts"} {
		delete(fields, child)
	}
	fields["updatedAt"] = s.now().UTC()

	encoded, err := repositories.EncodePatch(fields)
	if err != nil {
		return nil, err
	}
	return s.driver.UpdateOne(ctx, key.Kind.Collection(), s.filter(key), encoded)
}

func (s *Store) UpdateMany(ctx context.Context, patches []repositories.KeyedPatch) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		for _, p := range patches {
			if _, err := s.UpdateOne(ctx, p.Key, p.Patch); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteOne removes the node, then every descendant, in one transaction.
func (s *Store) DeleteOne(ctx context.Context, key repositories.Key) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.driver.DeleteOne(ctx, key.Kind.Collection(), s.filter(key)); err != nil {
			return err
		}

		var children []repositories.Kind
		scope := repositories.Filter{OwnerID: s.ownerID, WorkspaceID: key.WorkspaceID}
		switch key.Kind {
		case repositories.KindWorkspace:
			children = []repositories.Kind{repositories.KindDashboard, repositories.KindTile, repositories.KindNote, repositories.KindContact}
		case repositories.KindDashboard:
			children = []repositories.Kind{repositories.KindTile, repositories.KindNote, repositories.KindContact}
			scope.DashboardID = key.ID
		}
		for _, kind := range children {
			n, err := s.driver.DeleteMany(ctx, kind.Collection(), scope)
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Debug("cascade delete", "parent", key.String(), "kind", kind, "count", n)
			}
		}
		return nil
	})
}

// prepare strips children and, for workspaces, stamps the owner.
func (s *Store) prepare(key repositories.Key, doc json.RawMessage) (json.RawMessage, error) {
	doc, err := repositories.StripChildren(key.Kind, doc)
	if err != nil {
		return nil, err
	}
	if key.Kind != repositories.KindWorkspace {
		return doc, nil
	}
	owner, err := json.Marshal(s.ownerID)
	if err != nil {
		return nil, err
	}
	return repositories.RewriteDocument(doc, func(body map[string]json.RawMessage) {
		body["ownerIdentity"] = owner
	})
}

// requireContainer reports NotFound when the parent of kind does not exist
// for this owner.
func (s *Store) requireContainer(ctx context.Context, kind repositories.Kind, workspaceID, dashboardID string) error {
	switch {
	case kind == repositories.KindDashboard:
		_, err := s.FindOne(ctx, repositories.WorkspaceKey(workspaceID))
		return err
	case kind.IsLeaf():
		_, err := s.FindOne(ctx, repositories.DashboardKey(workspaceID, dashboardID))
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn repositories.TxFn) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.ExecTx(ctx, fn)
}
