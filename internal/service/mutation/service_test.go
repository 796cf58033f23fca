package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/config"
	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/models/workspace"
	"insightboard/internal/domain/services"
	"insightboard/internal/repository"
	"insightboard/internal/repository/ephemeral"
	"insightboard/internal/repository/memory"
	"insightboard/internal/service/aggregate"
	"insightboard/internal/service/quota"
)

const testPlans = `
plans:
  guest:
    createWorkspace: 3
    createTile: 10
    createContact: 5
    tileChat: 5
    regenerate: 5
    contactChat: 0
  free:
    createWorkspace: 3
    createTile: 10
    createContact: 5
    tileChat: 5
    regenerate: 5
    contactChat: 5
`

type stubAssistant struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (a *stubAssistant) Complete(_ context.Context, req *services.AssistantRequest) (*services.AssistantReply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &services.AssistantReply{Content: a.reply, Model: req.Model, TotalTokens: 42}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []services.MutationEvent
}

func (r *recordingSink) Publish(_ context.Context, e services.MutationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Operation == op {
			n++
		}
	}
	return n
}

type fixture struct {
	svc       services.MutationService
	ledger    *quota.Ledger
	driver    *memory.DocumentDriver
	kv        *memory.KVStore
	assistant *stubAssistant
	events    *recordingSink
	logger    *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	plans, err := config.ParsePlans([]byte(testPlans))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	kv := memory.NewKVStore()
	f := &fixture{
		ledger:    quota.NewLedger(plans, memory.NewQuotaStore(), ephemeral.NewQuotaStore(kv, ephemeral.NewLocks(), 24*time.Hour, 1), logger),
		driver:    memory.NewDocumentDriver(),
		kv:        kv,
		assistant: &stubAssistant{reply: "assistant says hi"},
		events:    &recordingSink{},
		logger:    logger,
	}
	f.svc = f.instance()
	return f
}

// instance builds a service over the fixture's backends with its own locks
// and mirror, the way a second server process would see them.
func (f *fixture) instance() services.MutationService {
	sel := repository.NewSelector(f.kv, ephemeral.NewLocks(), f.driver, f.driver, f.logger)
	return NewMutationService(Config{
		Aggregates:   aggregate.NewManager(sel, aggregate.NewMirror(16), f.logger),
		Ledger:       f.ledger,
		Assistant:    f.assistant,
		Events:       f.events,
		DefaultModel: "test-model",
		Logger:       f.logger,
	})
}

var testIdentities = []models.Identity{
	models.Guest("guest-session"),
	models.Member("member-1", models.PlanFree),
}

func eachIdentity(t *testing.T, fn func(t *testing.T, f *fixture, id models.Identity)) {
	for _, id := range testIdentities {
		t.Run(string(id.Kind), func(t *testing.T) {
			fn(t, newFixture(t), id)
		})
	}
}

// seed creates a workspace with n tiles and returns its active dashboard.
func (f *fixture) seed(t *testing.T, id models.Identity, name string, n int) (services.Container, *workspace.Dashboard) {
	t.Helper()
	snap := &services.WorkspaceSnapshot{Name: name, Website: strings.ToLower(name) + ".io"}
	for i := 0; i < n; i++ {
		snap.Tiles = append(snap.Tiles, services.TileInput{Title: fmt.Sprintf("Tile %d", i), Content: "body", Prompt: "describe"})
	}
	res, err := f.svc.GetOrCreateWorkspace(context.Background(), id, snap)
	require.NoError(t, err)
	require.True(t, res.Created)
	db := res.Workspace.ActiveDashboard()
	require.NotNil(t, db)
	return services.Container{WorkspaceID: res.Workspace.ID, DashboardID: db.ID}, db
}

// failWrites makes every write to id's tree fail as unavailable.
func (f *fixture) failWrites(id models.Identity) {
	unavailable := domain.Unavailable("test", errors.New("connection refused"))
	if id.IsGuest() {
		f.kv.Fail = func(op, key string) error {
			if (op == "set" || op == "update") && key == ephemeral.GraphKey(id.Session) {
				return unavailable
			}
			return nil
		}
		return
	}
	f.driver.Fail = func(op, collection string) error {
		if op != "find" && op != "find_one" {
			return unavailable
		}
		return nil
	}
}

func tileIDs(tiles []workspace.Tile) []string {
	ids := make([]string, len(tiles))
	for i, t := range tiles {
		ids[i] = t.ID
	}
	return ids
}

func TestReorderTiles(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 3)
		a, b, cc := db.Tiles[0].ID, db.Tiles[1].ID, db.Tiles[2].ID

		order := []string{cc, a, b}
		tiles, err := f.svc.ReorderTiles(ctx, id, c, &services.ReorderTilesRequest{Order: order})
		require.NoError(t, err)
		assert.Equal(t, order, tileIDs(tiles))
		for i, tile := range tiles {
			assert.Equal(t, i, tile.OrderIndex)
		}

		// repeating the same order writes nothing
		again, err := f.svc.ReorderTiles(ctx, id, c, &services.ReorderTilesRequest{Order: order})
		require.NoError(t, err)
		assert.Equal(t, order, tileIDs(again))
		assert.Equal(t, 1, f.events.count("reorderTiles"))

		fetched, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Equal(t, order, tileIDs(fetched.Tiles))
	})
}

func TestReorderTiles_RejectsNonPermutation(t *testing.T) {
	f := newFixture(t)
	id := models.Guest("s1")
	c, db := f.seed(t, id, "Acme", 3)
	a, b := db.Tiles[0].ID, db.Tiles[1].ID

	tests := []struct {
		name    string
		order   []string
		missing int
		extra   int
	}{
		{"missing one", []string{a, b}, 1, 0},
		{"unknown id", []string{a, b, db.Tiles[2].ID, "ghost"}, 0, 1},
		{"duplicate", []string{a, a, b}, 1, 1},
		{"empty", nil, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReorderTiles(context.Background(), id, c, &services.ReorderTilesRequest{Order: tt.order})
			require.ErrorIs(t, err, domain.ErrInvalidOrder)
			require.ErrorIs(t, err, domain.ErrValidation)
			var orderErr *domain.InvalidOrderError
			require.True(t, errors.As(err, &orderErr))
			assert.Len(t, orderErr.Missing, tt.missing)
			assert.Len(t, orderErr.Extra, tt.extra)

			assertOrder(t, f, id, c, db.TileIDs())
		})
	}
}

// assertOrder checks the stored dashboard lists want with orderIndex equal
// to each tile's position, bypassing every mirror.
func assertOrder(t *testing.T, f *fixture, id models.Identity, c services.Container, want []string) {
	t.Helper()
	fetched, err := f.instance().GetDashboard(context.Background(), id, c)
	require.NoError(t, err)
	assert.Equal(t, want, tileIDs(fetched.Tiles))
	for i, tile := range fetched.Tiles {
		assert.Equal(t, i, tile.OrderIndex, tile.ID)
	}
}

func TestReorderTiles_WriteFailureKeepsOrder(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 3)
		original := db.TileIDs()
		order := []string{original[2], original[0], original[1]}

		f.failWrites(id)
		_, err := f.svc.ReorderTiles(ctx, id, c, &services.ReorderTilesRequest{Order: order})
		require.ErrorIs(t, err, domain.ErrBackendUnavailable)
		assert.Zero(t, f.events.count("reorderTiles"))

		f.kv.Fail, f.driver.Fail = nil, nil
		assertOrder(t, f, id, c, original)
		fetched, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Equal(t, original, tileIDs(fetched.Tiles))

		tiles, err := f.svc.ReorderTiles(ctx, id, c, &services.ReorderTilesRequest{Order: order})
		require.NoError(t, err)
		assert.Equal(t, order, tileIDs(tiles))
		assert.Equal(t, 1, f.events.count("reorderTiles"))
		assertOrder(t, f, id, c, order)
	})
}

func TestGetOrCreateWorkspace_QuotaExhausted(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			res, err := f.svc.GetOrCreateWorkspace(ctx, id, &services.WorkspaceSnapshot{Name: fmt.Sprintf("ws-%d", i)})
			require.NoError(t, err)
			require.True(t, res.Created)
			require.NotNil(t, res.Quota)
			assert.Equal(t, i, res.Quota.Used)
		}

		_, err := f.svc.GetOrCreateWorkspace(ctx, id, &services.WorkspaceSnapshot{Name: "ws-4"})
		require.ErrorIs(t, err, domain.ErrQuotaExceeded)
		var qe *domain.QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, 3, qe.Used)
		assert.Equal(t, 3, qe.Limit)
		assert.Equal(t, string(models.ActionCreateWorkspace), qe.Action)

		list, err := f.svc.ListWorkspaces(ctx, id)
		require.NoError(t, err)
		assert.Len(t, list, 3)

		// resolving an existing workspace is never gated
		res, err := f.svc.GetOrCreateWorkspace(ctx, id, &services.WorkspaceSnapshot{Name: "ws-2"})
		require.NoError(t, err)
		assert.False(t, res.Created)
	})
}

func TestCreateTile_WriteFailureReleasesQuota(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, _ := f.seed(t, id, "Acme", 2)
		before, err := f.ledger.Evaluate(ctx, id, models.ActionCreateTile)
		require.NoError(t, err)

		f.failWrites(id)
		_, err = f.svc.CreateTile(ctx, id, c, &services.CreateTileRequest{Title: "New", Content: "x"})
		require.ErrorIs(t, err, domain.ErrBackendUnavailable)

		f.kv.Fail, f.driver.Fail = nil, nil
		after, err := f.ledger.Evaluate(ctx, id, models.ActionCreateTile)
		require.NoError(t, err)
		assert.Equal(t, before.Used, after.Used)

		db, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Len(t, db.Tiles, 2)
		assert.Zero(t, f.events.count("createTile"))
	})
}

func TestCreateTile_AppendsAndCountsQuota(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, _ := f.seed(t, id, "Acme", 2)

		created, err := f.svc.CreateTile(ctx, id, c, &services.CreateTileRequest{Title: "  New  ", Content: "x"})
		require.NoError(t, err)
		assert.Equal(t, "New", created.Entity.Title)
		assert.Equal(t, 2, created.Entity.OrderIndex)
		assert.Equal(t, 1, created.Quota.Used)

		db, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		require.Len(t, db.Tiles, 3)
		assert.Equal(t, created.Entity.ID, db.Tiles[2].ID)

		_, err = f.svc.CreateTile(ctx, id, c, &services.CreateTileRequest{Title: "", Content: "x"})
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestTileContentMustNotBeBlank(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 1)
		tileID := db.Tiles[0].ID

		for _, content := range []string{"", "   ", "\n\t"} {
			_, err := f.svc.CreateTile(ctx, id, c, &services.CreateTileRequest{Title: "New", Content: content})
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr, "%q", content)
			assert.Equal(t, "content", verr.Field)

			blank := content
			_, err = f.svc.UpdateTile(ctx, id, c, tileID, &services.UpdateTileRequest{Content: &blank})
			require.ErrorAs(t, err, &verr, "%q", content)
			assert.Equal(t, "content", verr.Field)
		}

		// surrounding whitespace is part of the markdown and kept as sent
		content := "  # Heading\n"
		updated, err := f.svc.UpdateTile(ctx, id, c, tileID, &services.UpdateTileRequest{Content: &content})
		require.NoError(t, err)
		assert.Equal(t, content, updated.Content)

		fetched, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		require.Len(t, fetched.Tiles, 1)
		assert.Equal(t, content, fetched.Tiles[0].Content)
	})
}

func TestForeignContainersAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := models.Member("owner", models.PlanFree)
	c, db := f.seed(t, owner, "Acme", 1)

	others := []models.Identity{
		models.Member("intruder", models.PlanFree),
		models.Guest("guest-session"),
	}
	for _, other := range others {
		t.Run(other.Key(), func(t *testing.T) {
			_, err := f.svc.CreateTile(ctx, other, c, &services.CreateTileRequest{Title: "x", Content: "x"})
			assert.ErrorIs(t, err, domain.ErrNotFound)

			_, err = f.svc.UpdateTile(ctx, other, c, db.Tiles[0].ID, &services.UpdateTileRequest{})
			assert.ErrorIs(t, err, domain.ErrNotFound)

			err = f.svc.DeleteDashboard(ctx, other, c)
			assert.ErrorIs(t, err, domain.ErrNotFound)

			_, err = f.svc.GetWorkspace(ctx, other, c.WorkspaceID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}

	owned, err := f.svc.GetDashboard(ctx, owner, c)
	require.NoError(t, err)
	assert.Len(t, owned.Tiles, 1)
}

func TestChatWithTile(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 1)
		tileID := db.Tiles[0].ID

		res, err := f.svc.ChatWithTile(ctx, id, c, tileID, &services.ChatRequest{Message: "expand on this"})
		require.NoError(t, err)
		require.NotNil(t, res.Reply)
		assert.Empty(t, res.ReplyError)
		assert.Equal(t, "assistant says hi", res.Reply.Content)
		require.Len(t, res.Entity.History, 2)
		assert.Equal(t, workspace.RoleUser, res.Entity.History[0].Role)
		assert.Equal(t, workspace.RoleAssistant, res.Entity.History[1].Role)
		assert.Equal(t, 1, res.Quota.Used)

		_, err = f.svc.ChatWithTile(ctx, id, c, tileID, &services.ChatRequest{Message: "   "})
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestChatWithTile_AssistantFailureKeepsUserMessage(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 1)
		tileID := db.Tiles[0].ID
		f.assistant.err = errors.New("model overloaded")

		res, err := f.svc.ChatWithTile(ctx, id, c, tileID, &services.ChatRequest{Message: "hello"})
		require.NoError(t, err)
		assert.Nil(t, res.Reply)
		assert.Contains(t, res.ReplyError, "model overloaded")
		assert.Equal(t, 1, res.Quota.Used)

		fetched, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		history := fetched.Tile(tileID).History
		require.Len(t, history, 1)
		assert.Equal(t, "hello", history[0].Content)
	})
}

func TestRegenerateTile(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 1)
		tileID := db.Tiles[0].ID
		f.assistant.reply = "fresh content"

		res, err := f.svc.RegenerateTile(ctx, id, c, tileID, nil)
		require.NoError(t, err)
		assert.Equal(t, "fresh content", res.Entity.Content)
		assert.Equal(t, 2, res.Entity.Attempts)
		assert.Equal(t, "test-model", res.Entity.Model)
		require.Len(t, res.Entity.History, 1)
		assert.Equal(t, workspace.MessageKindRegeneration, res.Entity.History[0].Kind)
		assert.Equal(t, 1, res.Quota.Used)

		f.assistant.err = errors.New("timeout")
		_, err = f.svc.RegenerateTile(ctx, id, c, tileID, nil)
		require.ErrorIs(t, err, domain.ErrBackendUnavailable)

		usage, err := f.ledger.Evaluate(ctx, id, models.ActionRegenerate)
		require.NoError(t, err)
		assert.Equal(t, 1, usage.Used)

		fetched, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Equal(t, 2, fetched.Tile(tileID).Attempts)
	})
}

func TestChatWithTile_AcrossInstances(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 1)
		tileID := db.Tiles[0].ID
		other := f.instance()

		// both instances hold the tree before either chats
		_, err := other.GetDashboard(ctx, id, c)
		require.NoError(t, err)

		_, err = f.svc.ChatWithTile(ctx, id, c, tileID, &services.ChatRequest{Message: "first"})
		require.NoError(t, err)
		res, err := other.ChatWithTile(ctx, id, c, tileID, &services.ChatRequest{Message: "second"})
		require.NoError(t, err)

		contents := func(history []workspace.Message) []string {
			out := make([]string, len(history))
			for i, m := range history {
				out[i] = m.Content
			}
			return out
		}
		want := []string{"first", "assistant says hi", "second", "assistant says hi"}
		assert.Equal(t, want, contents(res.Entity.History))

		fetched, err := f.instance().GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Equal(t, want, contents(fetched.Tile(tileID).History))
	})
}

func TestRegenerateTile_CountsStoredAttempts(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 1)
		tileID := db.Tiles[0].ID
		other := f.instance()
		_, err := other.GetDashboard(ctx, id, c)
		require.NoError(t, err)

		_, err = f.svc.RegenerateTile(ctx, id, c, tileID, nil)
		require.NoError(t, err)
		res, err := other.RegenerateTile(ctx, id, c, tileID, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Entity.Attempts)
		assert.Len(t, res.Entity.History, 2)
	})
}

func TestLeavesWrittenByAnotherInstance(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, _ := f.seed(t, id, "Acme", 1)
		other := f.instance()
		_, err := other.GetDashboard(ctx, id, c)
		require.NoError(t, err)

		created, err := f.svc.CreateTile(ctx, id, c, &services.CreateTileRequest{Title: "Late", Content: "x"})
		require.NoError(t, err)
		note, err := f.svc.CreateNote(ctx, id, c, &services.CreateNoteRequest{Title: "Later", Content: "y"})
		require.NoError(t, err)

		title := "Renamed"
		updated, err := other.UpdateTile(ctx, id, c, created.Entity.ID, &services.UpdateTileRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)

		fetched, err := other.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		require.NotNil(t, fetched.Tile(created.Entity.ID))
		assert.Equal(t, title, fetched.Tile(created.Entity.ID).Title)

		require.NoError(t, other.DeleteNote(ctx, id, c, note.ID))
		require.NoError(t, other.DeleteTile(ctx, id, c, created.Entity.ID))
		err = other.DeleteTile(ctx, id, c, created.Entity.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestContacts(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, _ := f.seed(t, id, "Acme", 0)

		_, err := f.svc.CreateContact(ctx, id, c, &services.CreateContactRequest{Name: " "})
		require.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.svc.CreateContact(ctx, id, c, &services.CreateContactRequest{Name: "Ada", Email: "not-an-email"})
		require.ErrorIs(t, err, domain.ErrValidation)

		created, err := f.svc.CreateContact(ctx, id, c, &services.CreateContactRequest{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, 1, created.Quota.Used)

		company := "Analytical Engines"
		updated, err := f.svc.UpdateContact(ctx, id, c, created.Entity.ID, &services.UpdateContactRequest{Company: &company})
		require.NoError(t, err)
		assert.Equal(t, "Ada", updated.Name)
		assert.Equal(t, company, updated.Company)

		chat, err := f.svc.ChatWithContact(ctx, id, c, created.Entity.ID, &services.ChatRequest{Message: "draft an intro"})
		if id.IsGuest() {
			require.ErrorIs(t, err, domain.ErrForbidden)
		} else {
			require.NoError(t, err)
			require.NotNil(t, chat.Reply)
			assert.Len(t, chat.Entity.ChatHistory, 2)
		}

		require.NoError(t, f.svc.DeleteContact(ctx, id, c, created.Entity.ID))
		err = f.svc.DeleteContact(ctx, id, c, created.Entity.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestNotes(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, _ := f.seed(t, id, "Acme", 0)

		note, err := f.svc.CreateNote(ctx, id, c, &services.CreateNoteRequest{Title: "Call notes", Content: "follow up"})
		require.NoError(t, err)

		blank := ""
		_, err = f.svc.UpdateNote(ctx, id, c, note.ID, &services.UpdateNoteRequest{Title: &blank})
		require.ErrorIs(t, err, domain.ErrValidation)

		content := "followed up"
		updated, err := f.svc.UpdateNote(ctx, id, c, note.ID, &services.UpdateNoteRequest{Content: &content})
		require.NoError(t, err)
		assert.Equal(t, "Call notes", updated.Title)
		assert.Equal(t, content, updated.Content)

		require.NoError(t, f.svc.DeleteNote(ctx, id, c, note.ID))
		db, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Empty(t, db.Notes)
	})
}

func TestDeleteTile(t *testing.T) {
	eachIdentity(t, func(t *testing.T, f *fixture, id models.Identity) {
		ctx := context.Background()
		c, db := f.seed(t, id, "Acme", 2)

		require.NoError(t, f.svc.DeleteTile(ctx, id, c, db.Tiles[0].ID))
		err := f.svc.DeleteTile(ctx, id, c, db.Tiles[0].ID)
		require.ErrorIs(t, err, domain.ErrNotFound)

		fetched, err := f.svc.GetDashboard(ctx, id, c)
		require.NoError(t, err)
		assert.Equal(t, []string{db.Tiles[1].ID}, tileIDs(fetched.Tiles))
	})
}

func TestResetGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest := models.Guest("s1")
	f.seed(t, guest, "Acme", 1)

	require.NoError(t, f.svc.ResetGuest(ctx, guest))
	list, err := f.svc.ListWorkspaces(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, list)

	usage, err := f.ledger.Evaluate(ctx, guest, models.ActionCreateWorkspace)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)

	err = f.svc.ResetGuest(ctx, models.Member("m1", models.PlanFree))
	require.ErrorIs(t, err, domain.ErrForbidden)
}
