package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"insightboard/internal/auth"
	"insightboard/internal/config"
	"insightboard/internal/domain/models"
	"insightboard/internal/repository"
	"insightboard/internal/repository/ephemeral"
	"insightboard/internal/repository/memory"
	"insightboard/internal/repository/postgres"
	"insightboard/internal/seed"
	"insightboard/internal/service/aggregate"
	"insightboard/internal/service/mutation"
	"insightboard/internal/service/quota"

	"github.com/joho/godotenv"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed workspaces")
	clearData := flag.Bool("clear-data", false, "Delete the demo member's data (keep schema)")
	memberID := flag.String("member", "", "Seed this member id instead of provisioning a demo user")
	email := flag.String("email", "demo@insightboard.local", "Demo user email (needs SUPABASE_URL and SUPABASE_KEY)")
	password := flag.String("password", "demo-password", "Demo user password")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: --drop-tables and --clear-data are disabled in production")
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	if *dropTables {
		logger.Warn("dropping tables", "prefix", cfg.TablePrefix)
		if err := postgres.DropSchema(ctx, repoConfig); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}
	if err := postgres.EnsureSchema(ctx, repoConfig); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	if *schemaOnly {
		logger.Info("schema setup complete")
		return
	}

	owner := *memberID
	if owner == "" {
		owner = provisionDemoUser(ctx, cfg, *email, *password)
	}

	if *clearData {
		removed, err := postgres.ClearOwner(ctx, repoConfig, owner)
		if err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		logger.Info("data cleared", "member", owner, "rows", removed)
		return
	}

	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		log.Fatalf("Failed to load plans: %v", err)
	}

	// The seeder only writes member data; the guest side stays in memory.
	kv := memory.NewKVStore()
	locks := ephemeral.NewLocks()
	driver := postgres.NewDocumentDriver(repoConfig)
	selector := repository.NewSelector(kv, locks, driver, postgres.NewTransactionManager(pool, logger), logger)
	svc := mutation.NewMutationService(mutation.Config{
		Aggregates: aggregate.NewManager(selector, aggregate.NewMirror(1), logger),
		Ledger: quota.NewLedger(plans, postgres.NewQuotaStore(repoConfig),
			ephemeral.NewQuotaStore(kv, locks, cfg.GuestQuotaWindow, cfg.GuestQuotaVersion), logger),
		DefaultModel: cfg.DefaultModel,
		Logger:       logger,
	})

	// Pro plan so seeding never trips the free-tier ceilings.
	report, err := seed.NewSeeder(svc, logger).Seed(ctx, models.Member(owner, models.PlanPro))
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	logger.Info("seeding complete",
		"member", owner,
		"workspaces", report.Workspaces,
		"tiles", report.Tiles,
		"notes", report.Notes,
		"contacts", report.Contacts,
		"existing", report.Existing,
	)
}

// provisionDemoUser ensures the demo account exists in Supabase and returns
// its id.
func provisionDemoUser(ctx context.Context, cfg *config.Config, email, password string) string {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		log.Println("SUPABASE_URL and SUPABASE_KEY are required unless --member is given")
		os.Exit(2)
	}
	id, created, err := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey).EnsureUser(ctx, email, password)
	if err != nil {
		log.Fatalf("Failed to provision demo user: %v", err)
	}
	if created {
		log.Printf("Created demo user %s (%s)", email, id)
	}
	return id
}
