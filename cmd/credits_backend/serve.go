package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/deck_credits/internal/adapters/billing"
	"github.com/SscSPs/deck_credits/internal/core/services"
	"github.com/SscSPs/deck_credits/internal/handlers"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/SscSPs/deck_credits/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}
}

func runServe(cmd *cobra.Command, a *app) error {
	cfg, logger := a.cfg, a.logger

	store, err := openStore(cmd.Context(), cfg, logger, cfg.RunMigrations)
	if err != nil {
		logger.Error("Failed to open ledger store", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	catalog, err := cfg.PlanCatalog()
	if err != nil {
		logger.Error("Invalid plan configuration", slog.String("error", err.Error()))
		return err
	}

	gw := services.Gateways{
		Verifier: billing.NewStripeEventVerifier(cfg.StripeWebhookSecret),
	}
	if cfg.StripeSecretKey != "" {
		gw.Subscriptions = billing.NewStripeSubscriptionGateway(cfg.StripeSecretKey, nil)
	}

	posthogClient := utils.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	defer posthogClient.Close()
	if posthogClient.IsInitialized() {
		gw.Usage = posthogClient
	}

	container := services.NewServiceContainer(cfg, store.repos, catalog, gw)

	chargeLimiter, err := middleware.NewMemoryLimiter(cfg.ChargeRateLimit)
	if err != nil {
		logger.Error("Invalid charge rate limit", slog.String("error", err.Error()))
		return err
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, cors)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendBaseURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		return err
	}

	if gw.Usage != nil {
		r.Use(middleware.UsageTracking(gw.Usage))
	}

	handlers.RegisterRoutes(r, cfg, container, chargeLimiter)

	logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("store", cfg.StoreDriver))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		return fmt.Errorf("server failed to run: %w", err)
	}
	return nil
}
