package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	DatabaseURL string `env:"DATABASE_URL"`
	TablePrefix string `env:"TABLE_PREFIX"` // Derived from Environment when empty
	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_KEY"` // Service role key, seed tool only
	// Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	SupabaseJWKSURL string
	CORSOrigins     string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`

	// Guest storage
	GuestStore      string        `env:"GUEST_STORE" envDefault:"memory"` // memory, redis, sqlite
	GuestSQLitePath string        `env:"GUEST_SQLITE_PATH" envDefault:"data/guest.db"`
	GuestTTL        time.Duration `env:"GUEST_TTL" envDefault:"720h"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	EventStream     string        `env:"EVENT_STREAM"` // Redis stream for mutation events, empty disables

	// Quota
	GuestQuotaWindow  time.Duration `env:"GUEST_QUOTA_WINDOW" envDefault:"24h"`
	GuestQuotaVersion int           `env:"GUEST_QUOTA_VERSION" envDefault:"1"`
	PlansFile         string        `env:"PLANS_FILE"` // Overrides the embedded plan table

	// Assistant
	AssistantProvider string `env:"ASSISTANT_PROVIDER" envDefault:"lorem"`
	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY"`
	DefaultModel      string `env:"DEFAULT_MODEL" envDefault:"claude-haiku-4-5-20251001"`

	MirrorCapacity int           `env:"MIRROR_CAPACITY" envDefault:"1024"`
	MirrorTTL      time.Duration `env:"MIRROR_TTL" envDefault:"30s"` // 0 trusts cached trees until evicted

	LogDir      string `env:"LOG_DIR"`
	LogMaxFiles int    `env:"LOG_MAX_FILES" envDefault:"10"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.TablePrefix == "" {
		cfg.TablePrefix = getTablePrefix(cfg.Environment)
	}
	if cfg.SupabaseURL != "" {
		cfg.SupabaseJWKSURL = cfg.SupabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &cfg, nil
}

// IsDev reports whether debug-only routes and logging are enabled.
func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}
