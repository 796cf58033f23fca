package workspace

import "time"

// Contact is a person attached to a dashboard. Name is required.
type Contact struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	JobTitle    string    `json:"jobTitle,omitempty"`
	LinkedinURL string    `json:"linkedinUrl,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	ChatHistory []Message `json:"chatHistory,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Contact) GetID() string { return c.ID }

func (c Contact) Clone() Contact {
	out := c
	out.ChatHistory = append([]Message(nil), c.ChatHistory...)
	return out
}
