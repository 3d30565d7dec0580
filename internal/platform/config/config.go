package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

const insecureJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	Port          string
	IsProduction  bool
	EnableDBCheck bool
	RunMigrations bool

	// Identity provider tokens
	JWTSecret string
	JWTIssuer string

	FrontendBaseURL string

	// Billing provider
	StripeSecretKey     string
	StripeWebhookSecret string
	WebhookTimeout      time.Duration
	Plans               []domain.Plan

	ChargeRateLimit string

	PosthogAPIKey   string
	PosthogEndpoint string
}

// planKeys lists the paid tiers and their default per-period credit allocation.
var planKeys = []struct {
	name           domain.SubscriptionStatus
	defaultCredits int64
}{
	{domain.StatusLite, 1000},
	{domain.StatusPlus, 2000},
	{domain.StatusPro, 5000},
}

// LoadConfig loads configuration from environment variables and .env file if present.
// Actual environment variables override .env values, which override defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("SQLITE_PATH", "credits.db")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", true)
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "8s")
	v.SetDefault("CHARGE_RATE_LIMIT", "60-M")
	v.SetDefault("POSTHOG_API_KEY", "")
	v.SetDefault("POSTHOG_ENDPOINT", "https://eu.i.posthog.com")
	for _, p := range planKeys {
		upper := strings.ToUpper(string(p.name))
		v.SetDefault("STRIPE_PRICE_"+upper, "")
		v.SetDefault("PLAN_CREDITS_"+upper, p.defaultCredits)
	}
	v.AutomaticEnv()

	cfg := &Config{
		StoreDriver:         strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:         v.GetString("PGSQL_URL"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		Port:                v.GetString("PORT"),
		IsProduction:        v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:       v.GetBool("ENABLE_DB_CHECK"),
		RunMigrations:       v.GetBool("RUN_MIGRATIONS"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWTIssuer:           v.GetString("JWT_ISSUER"),
		FrontendBaseURL:     v.GetString("FRONTEND_BASE_URL"),
		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		ChargeRateLimit:     v.GetString("CHARGE_RATE_LIMIT"),
		PosthogAPIKey:       v.GetString("POSTHOG_API_KEY"),
		PosthogEndpoint:     v.GetString("POSTHOG_ENDPOINT"),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			log.Println("Warning: PGSQL_URL environment variable not set.")
		}
	case StoreDriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, StoreDriverPostgres, StoreDriverSQLite)
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = insecureJWTSecret // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	webhookTimeoutStr := v.GetString("WEBHOOK_TIMEOUT")
	webhookTimeout, err := time.ParseDuration(webhookTimeoutStr)
	if err != nil || webhookTimeout <= 0 {
		webhookTimeout = 8 * time.Second
		log.Printf("Warning: Invalid value for WEBHOOK_TIMEOUT ('%s'). Defaulting to %s.\n", webhookTimeoutStr, webhookTimeout)
	}
	cfg.WebhookTimeout = webhookTimeout

	if cfg.StripeSecretKey == "" {
		log.Println("Warning: STRIPE_SECRET_KEY not set. Plan changes will be rejected.")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET not set. Every webhook delivery will fail verification.")
	}

	for _, p := range planKeys {
		upper := strings.ToUpper(string(p.name))
		plan := domain.Plan{
			Name:    p.name,
			PriceID: v.GetString("STRIPE_PRICE_" + upper),
			Credits: v.GetInt64("PLAN_CREDITS_" + upper),
		}
		if plan.PriceID == "" {
			log.Printf("Warning: STRIPE_PRICE_%s not set. Plan changes to or from %s will be rejected.\n", upper, p.name)
		}
		cfg.Plans = append(cfg.Plans, plan)
	}

	return cfg, nil
}

// PlanCatalog builds the plan catalog from the configured plans.
func (c *Config) PlanCatalog() (*domain.PlanCatalog, error) {
	return domain.NewPlanCatalog(c.Plans...)
}
