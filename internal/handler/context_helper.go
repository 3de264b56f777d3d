package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lifeshare/bloodlink-api/internal/middleware"
	"github.com/lifeshare/bloodlink-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// sessionID returns the caller's realtime session id, if any, so broadcasts
// can skip the session that initiated the change.
func sessionID(c *gin.Context) string {
	return c.GetHeader("X-Session-ID")
}
