package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/services"
)

// Quota enforces the daily request quota for the route group it is attached
// to. Exemption is structural: health and auth routes are registered outside
// the protected group, so they never pass through here.
//
// The bypass flag is only honored in development mode; config validation
// refuses to start a deployed server with it set.
func Quota(quotaService *services.QuotaService, bypass bool, logger *logrus.Logger) gin.HandlerFunc {
	if bypass {
		logger.Warn("Quota enforcement is bypassed (development mode)")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		identityKey := c.GetString(ContextIdentityKey)
		if identityKey == "" {
			identityKey = "addr:" + c.ClientIP()
		}

		decision, err := quotaService.Check(c.Request.Context(), identityKey, c.ClientIP())
		if err != nil {
			logger.WithError(err).Error("Failed to check quota")
			// Fail open so a counter-backend outage does not take down the
			// generation feature.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Info.ResetTime, 10))

		if !decision.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Daily rate limit exceeded",
				"resetTime": decision.Info.ResetTime,
				"limit":     decision.Info.Limit,
				"window":    windowLabel(quotaService.Window()),
			})
			c.Abort()
			return
		}

		if decision.Delay > 0 {
			time.Sleep(decision.Delay)
		}

		c.Next()
	}
}

func windowLabel(window time.Duration) string {
	hours := int(window.Hours())
	if hours > 0 && window == time.Duration(hours)*time.Hour {
		return strconv.Itoa(hours) + " hours"
	}
	return window.String()
}
