package handlers

import (
	"github.com/SscSPs/deck_credits/cmd/docs"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/SscSPs/deck_credits/internal/platform/config"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces.
// chargeLimiter may be nil, in which case charge and refund are not rate limited.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	chargeLimiter *limiter.Limiter,
) {

	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	// Billing provider callbacks authenticate by signature, not JWT
	RegisterWebhookRoutes(r, services.BillingWebhook)

	setupAPIV1Routes(r, cfg, services, chargeLimiter)

	setupSwaggerRoutes(r, cfg)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	service *portssvc.ServiceContainer,
	chargeLimiter *limiter.Limiter,
) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))

	var mutationMiddleware []gin.HandlerFunc
	if chargeLimiter != nil {
		mutationMiddleware = append(mutationMiddleware, middleware.RateLimit(chargeLimiter))
	}

	RegisterCreditRoutes(v1, service.Credit, mutationMiddleware...)
	RegisterBillingRoutes(v1, service.PlanChange)
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
