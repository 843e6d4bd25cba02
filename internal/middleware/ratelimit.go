package middleware

import (
	"net/http"
	"time"

	"veiled-verse/internal/cache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit caps how often a signed-in user may call the route. Redis errors
// let the request through.
func RateLimit(c *cache.Cache, action string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, ok := GetUserID(ctx)
		if !ok {
			ctx.Next()
			return
		}

		allowed, err := c.CheckRateLimit(ctx.Request.Context(), userID, action, limit, window)
		if err != nil && logger != nil {
			logger.Warn("rate limit check failed", zap.String("action", action), zap.Error(err))
		}
		if !allowed {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		ctx.Next()
	}
}
