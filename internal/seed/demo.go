// Package seed fills a member account with a demo workspace for local
// development and screenshots.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"insightboard/internal/domain/models"
	"insightboard/internal/domain/services"
)

// Seeder creates demo data through the mutation service, so seeded data
// passes the same validation and ordering rules as API traffic.
type Seeder struct {
	service services.MutationService
	logger  *slog.Logger
}

func NewSeeder(service services.MutationService, logger *slog.Logger) *Seeder {
	return &Seeder{service: service, logger: logger}
}

// Report counts what one Seed call created.
type Report struct {
	Workspaces int
	Tiles      int
	Notes      int
	Contacts   int
	// Existing counts snapshots that matched an already seeded workspace.
	Existing int
}

// Seed creates every demo workspace for the member. Running it twice is
// safe: snapshots carry fixed ids, so the second run finds them and adds
// nothing.
func (s *Seeder) Seed(ctx context.Context, member models.Identity) (*Report, error) {
	if !member.IsMember() {
		return nil, fmt.Errorf("seed target must be a member identity")
	}

	report := &Report{}
	for _, demo := range demoWorkspaces() {
		snap := demo.snapshot
		res, err := s.service.GetOrCreateWorkspace(ctx, member, &snap)
		if err != nil {
			return report, fmt.Errorf("workspace %q: %w", snap.Name, err)
		}
		if !res.Created {
			report.Existing++
			s.logger.Info("demo workspace exists", "workspace", res.Workspace.ID)
			continue
		}
		report.Workspaces++
		report.Tiles += len(snap.Tiles)

		active := res.Workspace.ActiveDashboard()
		if active == nil {
			continue
		}
		c := services.Container{WorkspaceID: res.Workspace.ID, DashboardID: active.ID}

		for i := range demo.notes {
			if _, err := s.service.CreateNote(ctx, member, c, &demo.notes[i]); err != nil {
				return report, fmt.Errorf("note %q: %w", demo.notes[i].Title, err)
			}
			report.Notes++
		}
		for i := range demo.contacts {
			if _, err := s.service.CreateContact(ctx, member, c, &demo.contacts[i]); err != nil {
				return report, fmt.Errorf("contact %q: %w", demo.contacts[i].Name, err)
			}
			report.Contacts++
		}
		s.logger.Info("demo workspace created", "workspace", res.Workspace.ID, "name", snap.Name)
	}
	return report, nil
}

type demoWorkspace struct {
	snapshot services.WorkspaceSnapshot
	notes    []services.CreateNoteRequest
	contacts []services.CreateContactRequest
}

func demoWorkspaces() []demoWorkspace {
	return []demoWorkspace{
		{
			snapshot: services.WorkspaceSnapshot{
				ID:            "demo-northwind",
				Name:          "Northwind Traders",
				Website:       "northwind.example",
				DashboardName: "Account overview",
				Tiles: []services.TileInput{
					{
						Title:   "Company snapshot",
						Content: "Specialty food importer with roughly 200 employees and distribution across 21 countries.",
						Prompt:  "Summarize the company in two sentences.",
						Model:   "lorem/lorem-fast",
					},
					{
						Title:   "Recent news",
						Content: "Opened a second warehouse in Rotterdam and announced a private-label pasta line.",
						Prompt:  "List notable news from the past quarter.",
						Model:   "lorem/lorem-fast",
					},
					{
						Title:   "Buying signals",
						Content: "Hiring three supply-chain analysts; RFP for cold-chain tracking expected next month.",
						Prompt:  "What suggests they are ready to buy?",
						Model:   "lorem/lorem-fast",
					},
				},
			},
			notes: []services.CreateNoteRequest{
				{Title: "Discovery call", Content: "Pain point: spoilage on long-haul routes. Budget owner is the COO."},
			},
			contacts: []services.CreateContactRequest{
				{
					Name:     "Laura Callahan",
					JobTitle: "Chief Operating Officer",
					Email:    "laura.callahan@northwind.example",
					Company:  "Northwind Traders",
				},
				{
					Name:        "Steven Buchanan",
					JobTitle:    "Head of Logistics",
					LinkedinURL: "https://www.linkedin.com/in/steven-buchanan-demo",
					Company:     "Northwind Traders",
				},
			},
		},
		{
			snapshot: services.WorkspaceSnapshot{
				ID:            "demo-contoso",
				Name:          "Contoso Pharmaceuticals",
				Website:       "contoso.example",
				DashboardName: "Research brief",
				Tiles: []services.TileInput{
					{
						Title:   "Pipeline",
						Content: "Four compounds in phase II trials, two focused on metabolic disorders.",
						Prompt:  "Describe the product pipeline.",
						Model:   "lorem/lorem-fast",
					},
					{
						Title:   "Org chart highlights",
						Content: "New CIO joined from a large CRO; data platform team reports directly to her.",
						Prompt:  "Who are the key decision makers?",
						Model:   "lorem/lorem-fast",
					},
				},
			},
			contacts: []services.CreateContactRequest{
				{
					Name:     "Dana Whitfield",
					JobTitle: "Chief Information Officer",
					Email:    "dana.whitfield@contoso.example",
					Company:  "Contoso Pharmaceuticals",
				},
			},
		},
	}
}
