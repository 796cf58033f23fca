package workspace

import "time"

// Workspace is the root aggregate: Workspace -> Dashboard -> {Tiles, Notes, Contacts}.
//
// Invariant: when Dashboards is non-empty exactly one entry has IsActive set.
type Workspace struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Website    string      `json:"website,omitempty"`
	OwnerID    string      `json:"ownerIdentity,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Dashboards []Dashboard `json:"dashboards"`
}

func (w Workspace) GetID() string { return w.ID }

// Dashboard returns a pointer into w.Dashboards, or nil.
func (w *Workspace) Dashboard(id string) *Dashboard {
	for i := range w.Dashboards {
		if w.Dashboards[i].ID == id {
			return &w.Dashboards[i]
		}
	}
	return nil
}

// ActiveDashboard returns the flagged-active dashboard, falling back to the
// first dashboard when none is flagged. Returns nil for an empty workspace.
func (w *Workspace) ActiveDashboard() *Dashboard {
	if len(w.Dashboards) == 0 {
		return nil
	}
	for i := range w.Dashboards {
		if w.Dashboards[i].IsActive {
			return &w.Dashboards[i]
		}
	}
	return &w.Dashboards[0]
}

// Activate marks id active and demotes every sibling. Returns false if id is
// not one of w's dashboards, in which case w is unchanged.
func (w *Workspace) Activate(id string) bool {
	if w.Dashboard(id) == nil {
		return false
	}
	for i := range w.Dashboards {
		w.Dashboards[i].IsActive = w.Dashboards[i].ID == id
	}
	return true
}

// NormalizeActive repairs the single-active invariant: the first flagged
// dashboard wins, or the first dashboard if none is flagged.
func (w *Workspace) NormalizeActive() {
	if active := w.ActiveDashboard(); active != nil {
		w.Activate(active.ID)
	}
}

// ActiveCount returns the number of dashboards flagged active.
func (w *Workspace) ActiveCount() int {
	n := 0
	for _, d := range w.Dashboards {
		if d.IsActive {
			n++
		}
	}
	return n
}

// Header returns a copy of w without its dashboards.
func (w Workspace) Header() Workspace {
	w.Dashboards = nil
	return w
}

// Clone returns a deep copy of w.
func (w Workspace) Clone() Workspace {
	out := w
	out.Dashboards = make([]Dashboard, len(w.Dashboards))
	for i, d := range w.Dashboards {
		out.Dashboards[i] = d.Clone()
	}
	return out
}

// Graph is a guest's complete ephemeral object graph.
type Graph []Workspace
