package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginrouter "user-service/internal/adapter/gin/router"
	"user-service/internal/config"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(cfg *config.Config, deps Dependencies, l *zap.Logger) *http.Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := ginrouter.SetupRouter(deps.GinHandler, ginrouter.Options{
		ServiceName:      cfg.Logger.ServiceName,
		Logger:           l,
		Limiter:          deps.RateLimiter,
		Registry:         deps.Registry,
		RequestTimeout:   cfg.App.RequestTimeout(),
		MaxBodyBytes:     cfg.App.MaxBodyBytes,
		CORSAllowOrigins: cfg.App.CORSAllowOrigins(),
		HealthCheck:      deps.HealthCheck,
	})

	addr := ":" + cfg.App.HTTPPort
	l.Info("Gin REST API configured", zap.String("address", addr))

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.App.RequestTimeout() + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
