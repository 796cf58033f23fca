package aggregate

import (
	"container/list"
	"sync"
	"time"

	"insightboard/internal/domain/models/workspace"
)

// Mirror caches hydrated workspace trees per identity, evicting the least
// recently used identity once capacity is reached. Callers only apply
// changes that a ResourceStore has already confirmed.
//
// Other instances may write the same identity's data, so an entry is only
// trusted for ttl after it was hydrated; older entries read as missing.
type Mirror struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List
	items    map[string]*list.Element
}

type mirrorEntry struct {
	key      string
	graph    workspace.Graph
	loadedAt time.Time
}

func NewMirror(capacity int) *Mirror {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mirror{
		capacity: capacity,
		now:      time.Now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// WithTTL bounds how long a hydrated tree is served. Zero keeps entries
// until they are evicted or invalidated.
func (m *Mirror) WithTTL(ttl time.Duration) *Mirror {
	m.ttl = ttl
	return m
}

// WithClock replaces the time source used for expiry.
func (m *Mirror) WithClock(now func() time.Time) *Mirror {
	m.now = now
	return m
}

// Get returns a deep copy of the cached tree.
func (m *Mirror) Get(key string) (workspace.Graph, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.live(key)
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return cloneGraph(el.Value.(*mirrorEntry).graph), true
}

// PutIfAbsent caches graph for key unless a live entry already exists, and
// returns a copy of whichever tree is cached afterwards. An existing entry
// may already carry writes applied after graph was read, so it wins.
func (m *Mirror) PutIfAbsent(key string, graph workspace.Graph) workspace.Graph {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.live(key); ok {
		m.order.MoveToFront(el)
		return cloneGraph(el.Value.(*mirrorEntry).graph)
	}
	m.items[key] = m.order.PushFront(&mirrorEntry{key: key, graph: cloneGraph(graph), loadedAt: m.now()})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*mirrorEntry).key)
	}
	return cloneGraph(graph)
}

// Apply runs fn against the cached tree for key. Nothing happens when key
// is not cached; the next read hydrates from the store.
func (m *Mirror) Apply(key string, fn func(g *workspace.Graph)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.live(key)
	if !ok {
		return
	}
	fn(&el.Value.(*mirrorEntry).graph)
}

// Invalidate drops the cached tree for key.
func (m *Mirror) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drop(key)
}

// live returns the entry for key, dropping it when it has expired. Callers
// hold mu.
func (m *Mirror) live(key string) (*list.Element, bool) {
	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && !m.now().Before(el.Value.(*mirrorEntry).loadedAt.Add(m.ttl)) {
		m.drop(key)
		return nil, false
	}
	return el, true
}

func (m *Mirror) drop(key string) {
	if el, ok := m.items[key]; ok {
		m.order.Remove(el)
		delete(m.items, key)
	}
}

// Len returns the number of cached identities.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func cloneGraph(g workspace.Graph) workspace.Graph {
	out := make(workspace.Graph, len(g))
	for i, ws := range g {
		out[i] = ws.Clone()
	}
	return out
}

// The functions below are the only mutations applied to mirrored trees.
// Each is a pure function of the stored entity and safe to repeat.

func upsertWorkspace(g *workspace.Graph, ws workspace.Workspace) {
	for i := range *g {
		if (*g)[i].ID == ws.ID {
			ws.Dashboards = (*g)[i].Dashboards
			(*g)[i] = ws
			return
		}
	}
	if ws.Dashboards == nil {
		ws.Dashboards = []workspace.Dashboard{}
	}
	*g = append(*g, ws)
}

func removeWorkspace(g *workspace.Graph, id string) {
	*g, _ = workspace.Remove(*g, id)
}

func findWorkspace(g workspace.Graph, id string) *workspace.Workspace {
	for i := range g {
		if g[i].ID == id {
			return &g[i]
		}
	}
	return nil
}

func upsertDashboard(g *workspace.Graph, db workspace.Dashboard) {
	ws := findWorkspace(*g, db.WorkspaceID)
	if ws == nil {
		return
	}
	if existing := ws.Dashboard(db.ID); existing != nil {
		db.Tiles, db.Notes, db.Contacts = existing.Tiles, existing.Notes, existing.Contacts
		*existing = db
		return
	}
	if db.Tiles == nil {
		db.Tiles = []workspace.Tile{}
	}
	if db.Notes == nil {
		db.Notes = []workspace.Note{}
	}
	if db.Contacts == nil {
		db.Contacts = []workspace.Contact{}
	}
	ws.Dashboards = append(ws.Dashboards, db)
}

func removeDashboard(g *workspace.Graph, workspaceID, id string) {
	if ws := findWorkspace(*g, workspaceID); ws != nil {
		ws.Dashboards, _ = workspace.Remove(ws.Dashboards, id)
	}
}

// DashboardOf returns the mirrored dashboard, or nil.
func DashboardOf(g workspace.Graph, workspaceID, dashboardID string) *workspace.Dashboard {
	ws := findWorkspace(g, workspaceID)
	if ws == nil {
		return nil
	}
	return ws.Dashboard(dashboardID)
}

// UpsertTile, UpsertNote and UpsertContact replace or append a leaf.
func UpsertTile(g *workspace.Graph, workspaceID, dashboardID string, t workspace.Tile) {
	if db := DashboardOf(*g, workspaceID, dashboardID); db != nil {
		db.Tiles = workspace.Upsert(db.Tiles, t)
		db.SortTiles()
	}
}

func UpsertNote(g *workspace.Graph, workspaceID, dashboardID string, n workspace.Note) {
	if db := DashboardOf(*g, workspaceID, dashboardID); db != nil {
		db.Notes = workspace.Upsert(db.Notes, n)
	}
}

func UpsertContact(g *workspace.Graph, workspaceID, dashboardID string, c workspace.Contact) {
	if db := DashboardOf(*g, workspaceID, dashboardID); db != nil {
		db.Contacts = workspace.Upsert(db.Contacts, c)
	}
}

// RemoveTile, RemoveNote and RemoveContact drop a leaf if present.
func RemoveTile(g *workspace.Graph, workspaceID, dashboardID, id string) {
	if db := DashboardOf(*g, workspaceID, dashboardID); db != nil {
		db.Tiles, _ = workspace.Remove(db.Tiles, id)
	}
}

func RemoveNote(g *workspace.Graph, workspaceID, dashboardID, id string) {
	if db := DashboardOf(*g, workspaceID, dashboardID); db != nil {
		db.Notes, _ = workspace.Remove(db.Notes, id)
	}
}

func RemoveContact(g *workspace.Graph, workspaceID, dashboardID, id string) {
	if db := DashboardOf(*g, workspaceID, dashboardID); db != nil {
		db.Contacts, _ = workspace.Remove(db.Contacts, id)
	}
}
