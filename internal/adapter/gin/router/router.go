package router

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "user-service/api/docs"
	"user-service/internal/adapter/gin/handler"
	"user-service/internal/adapter/gin/middleware"
	"user-service/pkg/logger"
	"user-service/pkg/ratelimit"
)

// Options configures the router's ambient middleware and endpoints.
type Options struct {
	ServiceName      string
	Logger           *zap.Logger
	Limiter          ratelimit.Limiter // nil disables rate limiting
	Registry         *prometheus.Registry
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
	CORSAllowOrigins []string
	HealthCheck      func(ctx context.Context) error
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(userHandler *handler.UserHandler, opts Options) *gin.Engine {
	log := opts.Logger
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", logger.GetRequestID(c.Request.Context()))}
		},
	}))
	router.Use(ginzap.RecoveryWithZap(log, true))
	router.Use(corsMiddleware(opts.CORSAllowOrigins))

	if opts.Registry != nil {
		router.Use(middleware.NewMetrics(opts.Registry).Handler())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	router.GET("/health", func(c *gin.Context) {
		if opts.HealthCheck != nil {
			if err := opts.HealthCheck(c.Request.Context()); err != nil {
				logger.WithContext(c.Request.Context(), log).Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": opts.ServiceName})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.ServiceName})
	})

	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("doc.json"))))

	api := router.Group("/api")
	api.Use(
		middleware.Timeout(opts.RequestTimeout),
		middleware.MaxBodyBytes(opts.MaxBodyBytes),
		middleware.RateLimiter(opts.Limiter, log),
	)
	{
		users := api.Group("/users")
		users.GET("", userHandler.ListUsers)
		users.POST("", userHandler.CreateUser)
		users.GET("/:id", userHandler.GetUser)
		users.PUT("/:id", userHandler.UpdateUser)
		users.DELETE("/:id", userHandler.DeleteUser)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = append(cfg.AllowHeaders, logger.RequestIDHeader)
	cfg.ExposeHeaders = []string{logger.RequestIDHeader}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
