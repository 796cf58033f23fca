// Package ephemeral implements the guest-side storage: the whole
// workspace tree of a session serialized as one blob in a KV store.
package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/repositories"
)

// Store is the ephemeral repositories.ResourceStore for one guest session.
// Reads load the tree with a single Get; writes load, change and save it in
// one Mutate cycle, so two tabs on different instances cannot lose each
// other's changes on an atomic KV backend.
type Store struct {
	kv      repositories.KVStore
	locks   *Locks
	session string
	now     func() time.Time
}

func NewStore(kv repositories.KVStore, locks *Locks, session string) *Store {
	return &Store{kv: kv, locks: locks, session: session, now: time.Now}
}

func (s *Store) Backend() repositories.Backend { return repositories.BackendEphemeral }

func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.kv.Get(ctx, GraphKey(s.session))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Graph returns a copy of the session's full tree.
func (s *Store) Graph(ctx context.Context) (workspace.Graph, error) {
	return LoadGraph(ctx, s.kv, s.session)
}

// Clear removes the session's tree.
func (s *Store) Clear(ctx context.Context) error {
	defer s.locks.Lock(GraphKey(s.session))()
	if err := s.kv.Delete(ctx, GraphKey(s.session)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, key repositories.Key) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.view(ctx, func(g workspace.Graph) error {
		doc, err := findNode(g, key)
		out = doc
		return err
	})
	return out, err
}

func (s *Store) FindMany(ctx context.Context, q repositories.Query) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := s.view(ctx, func(g workspace.Graph) error {
		docs, err := listNodes(g, q)
		if err != nil {
			return err
		}
		out = make([]json.RawMessage, 0, len(docs))
		for _, doc := range docs {
			if repositories.MatchesDocument(doc, q.Match) {
				out = append(out, doc)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) InsertOne(ctx context.Context, key repositories.Key, doc json.RawMessage) error {
	return s.update(ctx, func(g *workspace.Graph) error {
		return insertNode(g, key, doc)
	})
}

func (s *Store) UpdateOne(ctx context.Context, key repositories.Key, patch repositories.Patch) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.update(ctx, func(g *workspace.Graph) error {
		doc, err := updateNode(*g, key, s.stamp(patch))
		out = doc
		return err
	})
	return out, err
}

// UpdateMany saves only if every patch applies.
func (s *Store) UpdateMany(ctx context.Context, patches []repositories.KeyedPatch) error {
	return s.update(ctx, func(g *workspace.Graph) error {
		for _, p := range patches {
			if _, err := updateNode(*g, p.Key, s.stamp(p.Patch)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteOne(ctx context.Context, key repositories.Key) error {
	return s.update(ctx, func(g *workspace.Graph) error {
		return deleteNode(g, key)
	})
}

func (s *Store) stamp(patch repositories.Patch) repositories.Patch {
	out := make(repositories.Patch, len(patch)+1)
	for k, v := range patch {
		out[k] = v
	}
	out["updatedAt"] = s.now().UTC()
	return out
}

func (s *Store) view(ctx context.Context, fn func(g workspace.Graph) error) error {
	g, err := LoadGraph(ctx, s.kv, s.session)
	if err != nil {
		return err
	}
	return fn(g)
}

// update decodes the stored tree afresh on every attempt, so fn always sees
// the latest committed version.
func (s *Store) update(ctx context.Context, fn func(g *workspace.Graph) error) error {
	return Mutate(ctx, s.kv, s.locks, GraphKey(s.session), func(raw []byte, found bool) ([]byte, error) {
		g, err := decodeGraph(raw, found)
		if err != nil {
			return nil, err
		}
		if err := fn(&g); err != nil {
			return nil, err
		}
		return encodeGraph(g)
	})
}

func locateWorkspace(g workspace.Graph, id string) (*workspace.Workspace, error) {
	for i := range g {
		if g[i].ID == id {
			return &g[i], nil
		}
	}
	return nil, domain.NewNotFound(string(repositories.KindWorkspace), id)
}

func locateDashboard(g workspace.Graph, workspaceID, id string) (*workspace.Dashboard, error) {
	ws, err := locateWorkspace(g, workspaceID)
	if err != nil {
		return nil, err
	}
	db := ws.Dashboard(id)
	if db == nil {
		return nil, domain.NewNotFound(string(repositories.KindDashboard), id)
	}
	return db, nil
}

func encodeNode(kind repositories.Kind, v any) (json.RawMessage, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return repositories.StripChildren(kind, doc)
}

func findNode(g workspace.Graph, key repositories.Key) (json.RawMessage, error) {
	switch key.Kind {
	case repositories.KindWorkspace:
		ws, err := locateWorkspace(g, key.ID)
		if err != nil {
			return nil, err
		}
		return encodeNode(key.Kind, ws.Header())
	case repositories.KindDashboard:
		db, err := locateDashboard(g, key.WorkspaceID, key.ID)
		if err != nil {
			return nil, err
		}
		return encodeNode(key.Kind, db.Header())
	}

	db, err := locateDashboard(g, key.WorkspaceID, key.DashboardID)
	if err != nil {
		return nil, err
	}
	var node any
	switch key.Kind {
	case repositories.KindTile:
		if t := db.Tile(key.ID); t != nil {
			node = t
		}
	case repositories.KindNote:
		if n := db.Note(key.ID); n != nil {
			node = n
		}
	case repositories.KindContact:
		if c := db.Contact(key.ID); c != nil {
			node = c
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", key.Kind)
	}
	if node == nil {
		return nil, domain.NewNotFound(string(key.Kind), key.ID)
	}
	return encodeNode(key.Kind, node)
}

func listNodes(g workspace.Graph, q repositories.Query) ([]json.RawMessage, error) {
	var nodes []any
	switch q.Kind {
	case repositories.KindWorkspace:
		for _, ws := range g {
			nodes = append(nodes, ws.Header())
		}
	case repositories.KindDashboard:
		ws, err := locateWorkspace(g, q.WorkspaceID)
		if err != nil {
			return nil, err
		}
		for _, db := range ws.Dashboards {
			nodes = append(nodes, db.Header())
		}
	case repositories.KindTile, repositories.KindNote, repositories.KindContact:
		db, err := locateDashboard(g, q.WorkspaceID, q.DashboardID)
		if err != nil {
			return nil, err
		}
		switch q.Kind {
		case repositories.KindTile:
			for _, t := range db.Tiles {
				nodes = append(nodes, t)
			}
		case repositories.KindNote:
			for _, n := range db.Notes {
				nodes = append(nodes, n)
			}
		default:
			for _, c := range db.Contacts {
				nodes = append(nodes, c)
			}
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", q.Kind)
	}

	docs := make([]json.RawMessage, 0, len(nodes))
	for _, n := range nodes {
		doc, err := encodeNode(q.Kind, n)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func insertNode(g *workspace.Graph, key repositories.Key, doc json.RawMessage) error {
	duplicate := &domain.DuplicateIDError{Resource: string(key.Kind), ID: key.ID}

	switch key.Kind {
	case repositories.KindWorkspace:
		if _, err := locateWorkspace(*g, key.ID); err == nil {
			return duplicate
		}
		var ws workspace.Workspace
		if err := decode(doc, &ws); err != nil {
			return err
		}
		ws.ID = key.ID
		ws.Dashboards = []workspace.Dashboard{}
		*g = append(*g, ws)
		return nil

	case repositories.KindDashboard:
		ws, err := locateWorkspace(*g, key.WorkspaceID)
		if err != nil {
			return err
		}
		if ws.Dashboard(key.ID) != nil {
			return duplicate
		}
		var db workspace.Dashboard
		if err := decode(doc, &db); err != nil {
			return err
		}
		db.ID, db.WorkspaceID = key.ID, key.WorkspaceID
		db.Tiles, db.Notes, db.Contacts = []workspace.Tile{}, []workspace.Note{}, []workspace.Contact{}
		ws.Dashboards = append(ws.Dashboards, db)
		return nil
	}

	db, err := locateDashboard(*g, key.WorkspaceID, key.DashboardID)
	if err != nil {
		return err
	}
	switch key.Kind {
	case repositories.KindTile:
		return insertLeaf(&db.Tiles, key.ID, doc, duplicate, func(t *workspace.Tile) { t.ID = key.ID })
	case repositories.KindNote:
		return insertLeaf(&db.Notes, key.ID, doc, duplicate, func(n *workspace.Note) { n.ID = key.ID })
	case repositories.KindContact:
		return insertLeaf(&db.Contacts, key.ID, doc, duplicate, func(c *workspace.Contact) { c.ID = key.ID })
	}
	return fmt.Errorf("unknown kind %q", key.Kind)
}

type leaf interface {
	workspace.Tile | workspace.Note | workspace.Contact
	GetID() string
}

func insertLeaf[T leaf](items *[]T, id string, doc json.RawMessage, duplicate error, setID func(*T)) error {
	for _, item := range *items {
		if item.GetID() == id {
			return duplicate
		}
	}
	var item T
	if err := decode(doc, &item); err != nil {
		return err
	}
	setID(&item)
	*items = append(*items, item)
	return nil
}

// mergeNode applies patch to the JSON form of current and decodes the result.
func mergeNode[T any](current T, patch repositories.Patch) (T, error) {
	var out T
	doc, err := json.Marshal(current)
	if err != nil {
		return out, err
	}
	merged, err := repositories.MergeDocument(doc, patch)
	if err != nil {
		return out, err
	}
	err = decode(merged, &out)
	return out, err
}

func updateNode(g workspace.Graph, key repositories.Key, patch repositories.Patch) (json.RawMessage, error) {
	switch key.Kind {
	case repositories.KindWorkspace:
		ws, err := locateWorkspace(g, key.ID)
		if err != nil {
			return nil, err
		}
		merged, err := mergeNode(ws.Header(), patch)
		if err != nil {
			return nil, err
		}
		merged.ID, merged.Dashboards = ws.ID, ws.Dashboards
		*ws = merged
		return encodeNode(key.Kind, ws.Header())

	case repositories.KindDashboard:
		db, err := locateDashboard(g, key.WorkspaceID, key.ID)
		if err != nil {
			return nil, err
		}
		merged, err := mergeNode(db.Header(), patch)
		if err != nil {
			return nil, err
		}
		merged.ID, merged.WorkspaceID = db.ID, db.WorkspaceID
		merged.Tiles, merged.Notes, merged.Contacts = db.Tiles, db.Notes, db.Contacts
		*db = merged
		return encodeNode(key.Kind, db.Header())
	}

	db, err := locateDashboard(g, key.WorkspaceID, key.DashboardID)
	if err != nil {
		return nil, err
	}
	switch key.Kind {
	case repositories.KindTile:
		return updateLeaf(db.Tile(key.ID), key, patch, func(t *workspace.Tile) { t.ID = key.ID })
	case repositories.KindNote:
		return updateLeaf(db.Note(key.ID), key, patch, func(n *workspace.Note) { n.ID = key.ID })
	case repositories.KindContact:
		return updateLeaf(db.Contact(key.ID), key, patch, func(c *workspace.Contact) { c.ID = key.ID })
	}
	return nil, fmt.Errorf("unknown kind %q", key.Kind)
}

func updateLeaf[T leaf](current *T, key repositories.Key, patch repositories.Patch, setID func(*T)) (json.RawMessage, error) {
	if current == nil {
		return nil, domain.NewNotFound(string(key.Kind), key.ID)
	}
	merged, err := mergeNode(*current, patch)
	if err != nil {
		return nil, err
	}
	setID(&merged)
	*current = merged
	return encodeNode(key.Kind, merged)
}

func deleteNode(g *workspace.Graph, key repositories.Key) error {
	notFound := domain.NewNotFound(string(key.Kind), key.ID)

	switch key.Kind {
	case repositories.KindWorkspace:
		rest, ok := workspace.Remove(*g, key.ID)
		if !ok {
			return notFound
		}
		*g = rest
		return nil
	case repositories.KindDashboard:
		ws, err := locateWorkspace(*g, key.WorkspaceID)
		if err != nil {
			return err
		}
		rest, ok := workspace.Remove(ws.Dashboards, key.ID)
		if !ok {
			return notFound
		}
		ws.Dashboards = rest
		return nil
	}

	db, err := locateDashboard(*g, key.WorkspaceID, key.DashboardID)
	if err != nil {
		return err
	}
	var ok bool
	switch key.Kind {
	case repositories.KindTile:
		db.Tiles, ok = workspace.Remove(db.Tiles, key.ID)
	case repositories.KindNote:
		db.Notes, ok = workspace.Remove(db.Notes, key.ID)
	case repositories.KindContact:
		db.Contacts, ok = workspace.Remove(db.Contacts, key.ID)
	default:
		return fmt.Errorf("unknown kind %q", key.Kind)
	}
	if !ok {
		return notFound
	}
	return nil
}

func decode(doc json.RawMessage, v any) error {
	if err := json.Unmarshal(doc, v); err != nil {
		return domain.NewValidation("document", err.Error())
	}
	return nil
}
