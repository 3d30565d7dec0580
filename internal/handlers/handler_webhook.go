package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/dto"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Stripe recommends keeping webhook bodies under this size.
const maxWebhookBodyBytes = int64(65536)

type webhookHandler struct {
	webhookService portssvc.BillingWebhookSvc
}

// RegisterWebhookRoutes registers the billing provider callback. It must stay
// outside the authenticated group: the signature is the authentication.
func RegisterWebhookRoutes(r gin.IRouter, webhookService portssvc.BillingWebhookSvc) {
	h := &webhookHandler{webhookService: webhookService}
	r.POST("/webhooks/stripe", h.handleStripeWebhook)
}

// handleStripeWebhook godoc
// @Summary Stripe webhook
// @Description Receives signed billing events. Only checkout.session.completed has effects; redeliveries are acknowledged without granting twice.
// @Tags billing
// @Accept  json
// @Produce  json
// @Param   Stripe-Signature header string true "Stripe signature header"
// @Success 200 {object} dto.WebhookAckResponse
// @Failure 400 {object} map[string]string "Invalid signature or payload"
// @Failure 413 {object} map[string]string "Payload too large"
// @Failure 500 {object} map[string]string "Failed to process webhook"
// @Router /webhooks/stripe [post]
func (h *webhookHandler) handleStripeWebhook(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		logger.Warn("Failed to read webhook body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	err = h.webhookService.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSignatureInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		case errors.Is(err, apperrors.ErrMalformedEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event payload"})
		case errors.Is(err, apperrors.ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to process webhook", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAckResponse{Received: true})
}
