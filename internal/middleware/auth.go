package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/services"
	"github.com/temcen/cardforge/pkg/models"
)

// Context keys set by Auth for downstream middleware and handlers.
const (
	ContextPlayerCode    = "player_code"
	ContextIdentityKey   = "identity_key"
	ContextSessionClaims = "session_claims"
)

// Auth verifies the session credential on every protected request. The
// cookie is preferred; a bearer header is accepted for clients that cannot
// send cookies. Invalid and expired credentials are indistinguishable to the
// caller; only the server log tells them apart.
func Auth(authService *services.AuthService, cookieName string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c, cookieName)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHENTICATED",
					"message": "Authentication required",
				},
			})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.WithError(err).WithField("remote_addr", c.ClientIP()).Warn("Credential rejected")
			c.JSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Invalid session",
				},
			})
			c.Abort()
			return
		}

		c.Set(ContextPlayerCode, claims.PlayerCode)
		c.Set(ContextIdentityKey, "player:"+claims.PlayerCode)
		c.Set(ContextSessionClaims, claims)
		c.Next()
	}
}

func extractToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// PlayerFromContext returns the verified player code, or "" when the request
// was not authenticated.
func PlayerFromContext(c *gin.Context) string {
	return c.GetString(ContextPlayerCode)
}

// ClaimsFromContext returns the decoded session claims set by Auth.
func ClaimsFromContext(c *gin.Context) (*models.SessionClaims, bool) {
	v, ok := c.Get(ContextSessionClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*models.SessionClaims)
	return claims, ok
}
