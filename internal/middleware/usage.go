package middleware

import (
	"net/http"
	"strings"

	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	"github.com/gin-gonic/gin"
)

// pathsToSkip contains paths that should not be tracked
var pathsToSkip = map[string]bool{
	"/health":          true,
	"/webhooks/stripe": true,
}

// UsageTracking creates a Gin middleware that records one analytics event per
// successful authenticated request, named after the route template
// ("/api/v1/credits/charge" becomes "api_v1_credits_charge").
func UsageTracking(tracker gateways.UsageTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil || pathsToSkip[c.Request.URL.Path] {
			c.Next()
			return
		}

		c.Next()

		if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		// Set by AuthMiddleware further down the chain
		userID, exists := GetUserIDFromContext(c)
		if !exists {
			return
		}

		eventName := strings.TrimPrefix(c.FullPath(), "/")
		eventName = strings.ReplaceAll(eventName, "/", "_")
		if eventName == "" {
			return
		}

		tracker.Track(userID, eventName, map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
		})
	}
}
