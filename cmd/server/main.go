package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"insightboard/internal/auth"
	"insightboard/internal/capabilities"
	"insightboard/internal/config"
	"insightboard/internal/handler"
	"insightboard/internal/middleware"
	"insightboard/internal/repository"
	"insightboard/internal/repository/ephemeral"
	"insightboard/internal/service/aggregate"
	"insightboard/internal/service/assistant"
	"insightboard/internal/service/migration"
	"insightboard/internal/service/mutation"
	"insightboard/internal/service/quota"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	logger = logger.With("service", "insightboard")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"guest_store", cfg.GuestStore,
		"durable", cfg.DatabaseURL != "",
	)

	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		log.Fatalf("Failed to load plans: %v", err)
	}

	durable, err := openDurable(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open durable storage: %v", err)
	}
	defer durable.close()

	guests, err := openGuestStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open guest storage: %v", err)
	}
	defer guests.close()

	events, closeEvents, err := openEventSink(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open event stream: %v", err)
	}
	defer closeEvents()

	// Guest KV and guest quota share one keyed lock table so that graph and
	// counter updates for a session never interleave.
	locks := ephemeral.NewLocks()
	selector := repository.NewSelector(guests.kv, locks, durable.driver, durable.tx, logger)
	manager := aggregate.NewManager(selector, aggregate.NewMirror(cfg.MirrorCapacity).WithTTL(cfg.MirrorTTL), logger)
	ledger := quota.NewLedger(plans,
		durable.quotas,
		ephemeral.NewQuotaStore(guests.kv, locks, cfg.GuestQuotaWindow, cfg.GuestQuotaVersion),
		logger,
	)

	llm, err := assistant.NewFromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up assistant: %v", err)
	}

	mutations := mutation.NewMutationService(mutation.Config{
		Aggregates:   manager,
		Ledger:       ledger,
		Assistant:    llm,
		Events:       events,
		DefaultModel: cfg.DefaultModel,
		Logger:       logger,
	})
	transition := migration.NewTransition(migration.NewEngine(selector, logger), guests.kv, locks, manager, logger)

	registry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}

	// Without a JWKS URL every caller is a guest.
	var verifier auth.JWTVerifier
	if cfg.SupabaseJWKSURL != "" {
		v, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer v.Close()
		verifier = v
	} else {
		logger.Warn("SUPABASE_URL not set, member sign-in disabled")
	}

	logger.Info("services initialized")

	handlers := &handler.Handlers{
		Health:    handler.NewHealthHandler(durable.driver),
		Workspace: handler.NewWorkspaceHandler(mutations, logger),
		Tile:      handler.NewTileHandler(mutations, logger),
		Note:      handler.NewNoteHandler(mutations, logger),
		Contact:   handler.NewContactHandler(mutations, logger),
		Account:   handler.NewAccountHandler(mutations, ledger, transition, logger),
		Models:    handler.NewModelsHandler(registry, llm.Providers(), logger),
	}

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handlers.Register(mux)

	// Order: CORS → Recovery → Identity → Routes
	var h http.Handler = mux
	h = middleware.Identity(auth.NewIdentityResolver(verifier, logger), logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", auth.GuestSessionHeader},
		ExposedHeaders:   []string{auth.GuestSessionHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Assistant calls run inside the request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
