package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-service/internal/adapter/gin/handler"
	"user-service/pkg/logger"
	"user-service/pkg/ratelimit"
)

// RateLimiter applies a token bucket per method, route and client IP.
// Limiter errors fail open.
func RateLimiter(limiter ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := c.Request.Method + ":" + route + ":" + c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context(), log).Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			logger.WithContext(c.Request.Context(), log).Warn("rate limit exceeded", zap.String("key", key))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.ErrorResponse{
				Error:   handler.KindRateLimitExceeded,
				Message: "Rate limit exceeded, retry later",
			})
			return
		}
		c.Next()
	}
}
