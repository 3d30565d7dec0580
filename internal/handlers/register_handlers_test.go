package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SscSPs/deck_credits/internal/core/domain"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/handlers"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/SscSPs/deck_credits/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: testJWTSecret, IsProduction: true}

	creditSvc := new(MockCreditService)
	router := gin.New()
	limiter, err := middleware.NewMemoryLimiter("1-M")
	require.NoError(t, err)
	handlers.RegisterRoutes(router, cfg, &portssvc.ServiceContainer{
		Credit:         creditSvc,
		BillingWebhook: new(MockBillingWebhookService),
		PlanChange:     new(MockPlanChangeService),
	}, limiter)

	t.Run("health is public", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("api requires a token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/credits/stats", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no swagger in production", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("charge is rate limited per account", func(t *testing.T) {
		token, err := generateTestToken(testJWTSecret, "acct-limited")
		require.NoError(t, err)
		creditSvc.On("WithCreditCheck", mock.Anything, "acct-limited", domain.ActionChatMessage, mock.Anything).
			Return(&domain.ChargeOutcome{Success: true, NewBalance: 10, Required: 2}, nil).Once()

		codes := make([]int, 0, 2)
		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/api/v1/credits/charge", strings.NewReader(`{"action":"chat_message"}`))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
		creditSvc.AssertExpectations(t)
	})
}
