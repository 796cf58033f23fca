package seed

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/config"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/services"
	"insightboard/internal/repository"
	"insightboard/internal/repository/ephemeral"
	"insightboard/internal/repository/memory"
	"insightboard/internal/service/aggregate"
	"insightboard/internal/service/mutation"
	"insightboard/internal/service/quota"
)

func newService(t *testing.T) services.MutationService {
	t.Helper()
	plans, err := config.LoadPlans("")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	driver := memory.NewDocumentDriver()
	kv := memory.NewKVStore()
	locks := ephemeral.NewLocks()
	sel := repository.NewSelector(kv, locks, driver, driver, logger)

	return mutation.NewMutationService(mutation.Config{
		Aggregates: aggregate.NewManager(sel, aggregate.NewMirror(4), logger),
		Ledger:     quota.NewLedger(plans, memory.NewQuotaStore(), ephemeral.NewQuotaStore(kv, locks, time.Hour, 1), logger),
		Logger:     logger,
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	member := models.Member("demo-user", models.PlanPro)
	seeder := NewSeeder(svc, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	report, err := seeder.Seed(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, &Report{Workspaces: 2, Tiles: 5, Notes: 1, Contacts: 3}, report)

	list, err := svc.ListWorkspaces(ctx, member)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	ws, err := svc.GetWorkspace(ctx, member, "demo-northwind")
	require.NoError(t, err)
	active := ws.ActiveDashboard()
	require.NotNil(t, active)
	assert.Len(t, active.Tiles, 3)
	assert.Len(t, active.Contacts, 2)

	t.Run("second run adds nothing", func(t *testing.T) {
		again, err := seeder.Seed(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, &Report{Existing: 2}, again)
	})

	t.Run("guest rejected", func(t *testing.T) {
		_, err := seeder.Seed(ctx, models.Guest("s"))
		assert.Error(t, err)
	})
}
