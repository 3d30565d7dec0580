package utils_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/SscSPs/deck_credits/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJWT_AcceptedByAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "dev-secret"

	router := gin.New()
	router.Use(middleware.AuthMiddleware(secret, "deck-dev"))
	router.GET("/whoami", func(c *gin.Context) {
		userID, _ := middleware.GetUserIDFromContext(c)
		c.String(http.StatusOK, userID)
	})

	token, err := utils.GenerateJWT("acct-42", secret, time.Hour, "deck-dev")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-42", w.Body.String())
}

func TestGenerateJWT_Rejections(t *testing.T) {
	_, err := utils.GenerateJWT("", "s", time.Hour, "")
	assert.Error(t, err)

	_, err = utils.GenerateJWT("acct", "s", 0, "")
	assert.Error(t, err)
}
