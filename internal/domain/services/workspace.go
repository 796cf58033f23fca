package services

import (
	"context"

	"insightboard/internal/domain/models"
	workspace "insightboard/internal/domain/models/workspace"
)

// Container addresses a dashboard inside a workspace.
type Container struct {
	WorkspaceID string `json:"workspaceId"`
	DashboardID string `json:"dashboardId"`
}

// TileInput is one generated tile supplied by the content-generation step.
type TileInput struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	TotalTokens *int   `json:"totalTokens,omitempty"`
}

// WorkspaceSnapshot is an external generation result used to find or create
// a workspace. ID is optional; when present it becomes authoritative.
type WorkspaceSnapshot struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Website       string      `json:"website"`
	DashboardName string      `json:"dashboardName"`
	TemplateID    string      `json:"templateId"`
	Tiles         []TileInput `json:"tiles"`
}

// WorkspaceResult is returned by GetOrCreateWorkspace.
type WorkspaceResult struct {
	Workspace *workspace.Workspace `json:"workspace"`
	// Created is false when an existing workspace was returned.
	Created bool `json:"created"`
	// Reconciled is set when the workspace was found by (name, website) and
	// its id was replaced by the caller-provided one.
	Reconciled bool                `json:"reconciled"`
	Quota      *models.QuotaResult `json:"quota,omitempty"`
}

type CreateDashboardRequest struct {
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	BgColor    string `json:"bgColor"`
}

type UpdateDashboardRequest struct {
	Name    *string `json:"name"`
	BgColor *string `json:"bgColor"`
}

type RenameWorkspaceRequest struct {
	Name    *string `json:"name"`
	Website *string `json:"website"`
}

type CreateTileRequest = TileInput

type UpdateTileRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type ReorderTilesRequest struct {
	Order []string `json:"order"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type RegenerateRequest struct {
	// Prompt overrides the tile's stored prompt when non-empty.
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type CreateContactRequest struct {
	Name        string `json:"name"`
	JobTitle    string `json:"jobTitle"`
	LinkedinURL string `json:"linkedinUrl"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	Notes       string `json:"notes"`
}

type UpdateContactRequest struct {
	Name        *string `json:"name"`
	JobTitle    *string `json:"jobTitle"`
	LinkedinURL *string `json:"linkedinUrl"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Company     *string `json:"company"`
	Notes       *string `json:"notes"`
}

// Created pairs a quota-gated entity with the quota standing after the write.
type Created[T any] struct {
	Entity T                  `json:"entity"`
	Quota  models.QuotaResult `json:"quota"`
}

// ChatResult is the outcome of a chat turn. When the assistant fails the user
// message is still stored: Reply is nil and ReplyError explains why.
type ChatResult[T any] struct {
	Entity      T                  `json:"entity"`
	UserMessage workspace.Message  `json:"userMessage"`
	Reply       *workspace.Message `json:"reply,omitempty"`
	ReplyError  string             `json:"replyError,omitempty"`
	Quota       models.QuotaResult `json:"quota"`
}

// MutationService is the single mutation entry point used by the API layer.
// Every method resolves the storage backend from the identity.
type MutationService interface {
	ListWorkspaces(ctx context.Context, id models.Identity) ([]workspace.Workspace, error)
	GetWorkspace(ctx context.Context, id models.Identity, workspaceID string) (*workspace.Workspace, error)
	GetOrCreateWorkspace(ctx context.Context, id models.Identity, snapshot *WorkspaceSnapshot) (*WorkspaceResult, error)
	UpdateWorkspace(ctx context.Context, id models.Identity, workspaceID string, req *RenameWorkspaceRequest) (*workspace.Workspace, error)

	CreateDashboard(ctx context.Context, id models.Identity, workspaceID string, req *CreateDashboardRequest) (*workspace.Dashboard, error)
	GetDashboard(ctx context.Context, id models.Identity, c Container) (*workspace.Dashboard, error)
	GetActiveDashboard(ctx context.Context, id models.Identity, workspaceID string) (*workspace.Dashboard, error)
	SetActiveDashboard(ctx context.Context, id models.Identity, c Container) (*workspace.Dashboard, error)
	UpdateDashboard(ctx context.Context, id models.Identity, c Container, req *UpdateDashboardRequest) (*workspace.Dashboard, error)
	DeleteDashboard(ctx context.Context, id models.Identity, c Container) error

	CreateTile(ctx context.Context, id models.Identity, c Container, req *CreateTileRequest) (*Created[*workspace.Tile], error)
	UpdateTile(ctx context.Context, id models.Identity, c Container, tileID string, req *UpdateTileRequest) (*workspace.Tile, error)
	DeleteTile(ctx context.Context, id models.Identity, c Container, tileID string) error
	ReorderTiles(ctx context.Context, id models.Identity, c Container, req *ReorderTilesRequest) ([]workspace.Tile, error)
	RegenerateTile(ctx context.Context, id models.Identity, c Container, tileID string, req *RegenerateRequest) (*Created[*workspace.Tile], error)
	ChatWithTile(ctx context.Context, id models.Identity, c Container, tileID string, req *ChatRequest) (*ChatResult[*workspace.Tile], error)

	CreateNote(ctx context.Context, id models.Identity, c Container, req *CreateNoteRequest) (*workspace.Note, error)
	UpdateNote(ctx context.Context, id models.Identity, c Container, noteID string, req *UpdateNoteRequest) (*workspace.Note, error)
	DeleteNote(ctx context.Context, id models.Identity, c Container, noteID string) error

	CreateContact(ctx context.Context, id models.Identity, c Container, req *CreateContactRequest) (*Created[*workspace.Contact], error)
	UpdateContact(ctx context.Context, id models.Identity, c Container, contactID string, req *UpdateContactRequest) (*workspace.Contact, error)
	DeleteContact(ctx context.Context, id models.Identity, c Container, contactID string) error
	ChatWithContact(ctx context.Context, id models.Identity, c Container, contactID string, req *ChatRequest) (*ChatResult[*workspace.Contact], error)

	// ResetGuest removes every ephemeral workspace of a guest identity.
	ResetGuest(ctx context.Context, id models.Identity) error
}
