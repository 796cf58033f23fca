package workspace

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message kinds
const (
	MessageKindChat         = "chat"
	MessageKindRegeneration = "regeneration"
)

// Message is one chat turn. History slices are append-only.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tile is a generated-content unit. OrderIndex defines manual ordering.
type Tile struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Prompt      string    `json:"prompt"`
	Model       string    `json:"model"`
	OrderIndex  int       `json:"orderIndex"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Attempts    int       `json:"attempts"`
	TotalTokens *int      `json:"totalTokens,omitempty"`
	History     []Message `json:"history"`
}

func (t Tile) GetID() string { return t.ID }

// Clone returns a copy of t that shares no slices or pointers with it.
func (t Tile) Clone() Tile {
	out := t
	out.History = make([]Message, len(t.History))
	copy(out.History, t.History)
	if t.TotalTokens != nil {
		n := *t.TotalTokens
		out.TotalTokens = &n
	}
	return out
}
