package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/dto"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/gin-gonic/gin"
)

// billingHandler handles subscription changes requested by the signed-in user.
type billingHandler struct {
	planChangeService portssvc.PlanChangeSvc
}

// RegisterBillingRoutes registers routes related to subscriptions.
func RegisterBillingRoutes(rg *gin.RouterGroup, planChangeService portssvc.PlanChangeSvc) {
	h := &billingHandler{planChangeService: planChangeService}

	billing := rg.Group("/billing")
	{
		billing.POST("/change-plan", h.changePlan)
	}
}

// changePlan godoc
// @Summary Change subscription plan
// @Description Upgrades apply immediately with prorated billing and add the credit difference. Downgrades apply at the end of the billing period.
// @Tags billing
// @Accept  json
// @Produce  json
// @Param   change body dto.ChangePlanRequest true "Target price"
// @Success 200 {object} dto.ChangePlanResponse
// @Failure 400 {object} map[string]string "No subscription, same plan, unknown price or billing not configured"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to change plan"
// @Security BearerAuth
// @Router /billing/change-plan [post]
func (h *billingHandler) changePlan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ChangePlan", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("new_price_id", req.NewPriceID))
	result, err := h.planChangeService.ChangePlan(c.Request.Context(), userID, req.NewPriceID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSamePlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.ErrSamePlan.Error()})
		case errors.Is(err, apperrors.ErrNoSubscription):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active subscription found"})
		case errors.Is(err, apperrors.ErrUnknownPlan):
			logger.Warn("Plan change references a price outside the catalog", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan configuration"})
		case errors.Is(err, apperrors.ErrBillingNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Billing is not configured"})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to change plan", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change plan"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToChangePlanResponse(result))
}
