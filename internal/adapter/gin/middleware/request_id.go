package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"user-service/pkg/logger"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one. The
// ID is echoed in the response and stored in the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(logger.RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(logger.RequestIDHeader, rid)
		c.Set(string(logger.RequestIDKey), rid)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
