package workspace

import (
	"sort"
	"time"
)

const DefaultBgColor = "#ffffff"

// Dashboard is owned by exactly one Workspace. Tiles, notes and contacts are
// unique by id within the dashboard.
type Dashboard struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	TemplateID  string    `json:"templateId,omitempty"`
	BgColor     string    `json:"bgColor"`
	Tiles       []Tile    `json:"tiles"`
	Notes       []Note    `json:"notes"`
	Contacts    []Contact `json:"contacts"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (d Dashboard) GetID() string { return d.ID }

// Header returns a copy of d without its child collections.
func (d Dashboard) Header() Dashboard {
	d.Tiles, d.Notes, d.Contacts = nil, nil, nil
	return d
}

// Clone returns a deep copy of d.
func (d Dashboard) Clone() Dashboard {
	out := d
	out.Tiles = make([]Tile, len(d.Tiles))
	for i, t := range d.Tiles {
		out.Tiles[i] = t.Clone()
	}
	out.Notes = make([]Note, len(d.Notes))
	copy(out.Notes, d.Notes)
	out.Contacts = make([]Contact, len(d.Contacts))
	for i, c := range d.Contacts {
		out.Contacts[i] = c.Clone()
	}
	return out
}

// Tile returns a pointer into d.Tiles, or nil.
func (d *Dashboard) Tile(id string) *Tile {
	return findByID(d.Tiles, id)
}

// Note returns a pointer into d.Notes, or nil.
func (d *Dashboard) Note(id string) *Note {
	return findByID(d.Notes, id)
}

// Contact returns a pointer into d.Contacts, or nil.
func (d *Dashboard) Contact(id string) *Contact {
	return findByID(d.Contacts, id)
}

// TileIDs returns the ids of d's tiles in manual order.
func (d *Dashboard) TileIDs() []string {
	ids := make([]string, 0, len(d.Tiles))
	for _, t := range d.Tiles {
		ids = append(ids, t.ID)
	}
	return ids
}

// SortTiles orders tiles by OrderIndex; ties keep insertion order.
func (d *Dashboard) SortTiles() {
	sort.SliceStable(d.Tiles, func(i, j int) bool {
		return d.Tiles[i].OrderIndex < d.Tiles[j].OrderIndex
	})
}

// NextOrderIndex is the index a newly appended tile receives.
func (d *Dashboard) NextOrderIndex() int {
	next := 0
	for _, t := range d.Tiles {
		if t.OrderIndex >= next {
			next = t.OrderIndex + 1
		}
	}
	return next
}

type identified interface {
	GetID() string
}

func findByID[T identified](items []T, id string) *T {
	for i := range items {
		if items[i].GetID() == id {
			return &items[i]
		}
	}
	return nil
}

// Upsert replaces the item with the same id or appends it.
func Upsert[T identified](items []T, item T) []T {
	if existing := findByID(items, item.GetID()); existing != nil {
		*existing = item
		return items
	}
	return append(items, item)
}

// Remove drops the item with id, reporting whether it was present.
func Remove[T identified](items []T, id string) ([]T, bool) {
	for i := range items {
		if items[i].GetID() == id {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}
