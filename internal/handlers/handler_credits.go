package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/dto"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/gin-gonic/gin"
)

// creditHandler handles HTTP requests related to credit balances.
type creditHandler struct {
	creditService portssvc.CreditSvcFacade
}

func newCreditHandler(cs portssvc.CreditSvcFacade) *creditHandler {
	return &creditHandler{
		creditService: cs,
	}
}

// RegisterCreditRoutes registers routes related to credits. mutationMiddleware
// runs only in front of the balance-mutating routes.
func RegisterCreditRoutes(rg *gin.RouterGroup, creditService portssvc.CreditSvcFacade, mutationMiddleware ...gin.HandlerFunc) {
	h := newCreditHandler(creditService)

	credits := rg.Group("/credits")
	{
		credits.POST("/charge", chain(mutationMiddleware, h.charge)...)
		credits.POST("/refund", chain(mutationMiddleware, h.refund)...)
		credits.GET("/check", h.checkBalance)
		credits.GET("/stats", h.getStats)
		credits.GET("/transactions", h.listTransactions)
	}
}

func chain(mw []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, handler)
}

// charge godoc
// @Summary Charge credits for an action
// @Description Deducts the fixed cost of the action from the caller's balance. Feature services call this before doing any work.
// @Tags credits
// @Accept  json
// @Produce  json
// @Param   charge body dto.ChargeCreditsRequest true "Action to charge"
// @Success 200 {object} dto.ChargeCreditsResponse
// @Failure 400 {object} map[string]string "Invalid input or unknown action"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 402 {object} dto.InsufficientCreditsResponse
// @Failure 429 {object} map[string]string "Too many requests"
// @Failure 500 {object} map[string]string "Failed to charge credits"
// @Security BearerAuth
// @Router /credits/charge [post]
func (h *creditHandler) charge(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ChargeCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ChargeCredits", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	outcome, err := h.creditService.WithCreditCheck(c.Request.Context(), userID, domain.ActionType(req.Action), req.Metadata)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to charge credits", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to charge credits"})
		}
		return
	}

	if !outcome.Success {
		c.JSON(http.StatusPaymentRequired, dto.InsufficientCreditsResponse{
			Error:           "Insufficient credits",
			CreditsRequired: outcome.Required,
			CurrentBalance:  outcome.CurrentBalance,
		})
		return
	}

	resp := dto.ChargeCreditsResponse{Success: true, CreditsRemaining: outcome.NewBalance}
	if outcome.Transaction != nil {
		resp.TransactionID = outcome.Transaction.TransactionID
	}
	c.JSON(http.StatusOK, resp)
}

// refund godoc
// @Summary Refund a charge
// @Description Gives back exactly what one of the caller's own debits took, after the feature call it paid for failed. Each debit can be refunded once.
// @Tags credits
// @Accept  json
// @Produce  json
// @Param   refund body dto.RefundCreditsRequest true "Debit to refund"
// @Success 200 {object} dto.ChargeCreditsResponse
// @Failure 400 {object} map[string]string "Invalid input, unknown action or not a refundable charge"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Debit transaction not found"
// @Failure 409 {object} map[string]string "Transaction already refunded"
// @Failure 500 {object} map[string]string "Failed to refund credits"
// @Security BearerAuth
// @Router /credits/refund [post]
func (h *creditHandler) refund(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RefundCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RefundCredits", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	outcome, err := h.creditService.Refund(c.Request.Context(), userID, domain.ActionType(req.Action), req.TransactionID, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Debit transaction not found"})
		default:
			logger.Error("Failed to refund credits", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refund credits"})
		}
		return
	}
	if outcome.Duplicate {
		c.JSON(http.StatusConflict, gin.H{"error": "Transaction already refunded"})
		return
	}

	resp := dto.ChargeCreditsResponse{Success: true, CreditsRemaining: outcome.NewBalance}
	if outcome.Transaction != nil {
		resp.TransactionID = outcome.Transaction.TransactionID
	}
	c.JSON(http.StatusOK, resp)
}

// checkBalance godoc
// @Summary Check whether the balance covers an action
// @Description Read-only pre-flight check. Does not reserve credits.
// @Tags credits
// @Produce  json
// @Param   action query string true "Action type, e.g. presentation_create"
// @Success 200 {object} dto.BalanceCheckResponse
// @Failure 400 {object} map[string]string "Unknown action"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to check balance"
// @Security BearerAuth
// @Router /credits/check [get]
func (h *creditHandler) checkBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	action := c.Query("action")
	if action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'action' is required"})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	check, err := h.creditService.CheckBalance(c.Request.Context(), userID, domain.ActionType(action))
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to check balance", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check balance"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToBalanceCheckResponse(check))
}

// getStats godoc
// @Summary Get credit stats
// @Description Returns the caller's balance, lifetime usage and plan.
// @Tags credits
// @Produce  json
// @Success 200 {object} dto.CreditStatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Failed to retrieve stats"
// @Security BearerAuth
// @Router /credits/stats [get]
func (h *creditHandler) getStats(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	stats, err := h.creditService.GetStats(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to get credit stats", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToCreditStatsResponse(stats))
}

// listTransactions godoc
// @Summary List credit transactions
// @Description Returns the caller's ledger history, newest first, with token-based pagination.
// @Tags credits
// @Produce  json
// @Param   limit query int false "Page size (1-100, default 20)"
// @Param   nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list transactions"
// @Security BearerAuth
// @Router /credits/transactions [get]
func (h *creditHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for ListTransactions", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, err := h.creditService.ListTransactions(c.Request.Context(), userID, params.Limit, params.NextToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination token"})
		} else {
			logger.Error("Failed to list transactions", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToListTransactionsResponse(page))
}
