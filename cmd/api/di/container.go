package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-service/cmd/api/infrastructure"
	"user-service/internal/adapter/cache"
	"user-service/internal/adapter/db/gormstore"
	ginhandler "user-service/internal/adapter/gin/handler"
	grpcadapter "user-service/internal/adapter/grpc"
	"user-service/internal/adapter/repository/cached"
	"user-service/internal/config"
	"user-service/internal/usecase/user"
	"user-service/pkg/ratelimit"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redis.Client // nil when Redis is disabled
	NATS        *nats.Conn    // nil when events are disabled
	Registry    *prometheus.Registry
	UserUC      user.UserUsecase
	RateLimiter ratelimit.Limiter // nil when rate limiting is disabled
	GinHandler  *ginhandler.UserHandler
	GRPCService *grpcadapter.UserServiceServer
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}

	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db

	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	c.RedisClient = rdb

	publisher, nc, err := infrastructure.NewEventPublisher(cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	c.NATS = nc

	// Repository: record store, cache-aside in front when Redis is available
	var repo user.Repository = gormstore.NewUserRepo(db, l)
	if rdb != nil {
		repo = cached.NewUserRepository(repo, cache.NewRedisUserCache(rdb, cfg.Redis.CacheTTL(), l), l)
	}

	opts := []user.Option{
		user.WithPagination(user.PaginationConfig{
			DefaultSize: cfg.Pagination.DefaultSize,
			MaxSize:     cfg.Pagination.MaxSize,
		}),
	}
	if publisher != nil {
		opts = append(opts, user.WithPublisher(publisher))
	}
	c.UserUC = user.New(repo, l, opts...)

	c.RateLimiter = newRateLimiter(cfg, rdb)

	c.Registry = prometheus.NewRegistry()
	sqlDB, err := db.DB()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(sqlDB, cfg.DB.Name),
	)

	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.GRPCService = grpcadapter.NewUserServiceServer(c.UserUC, l)

	return c, nil
}

// newRateLimiter returns a Redis-backed limiter shared by all replicas, a
// process-local one without Redis, or nil when rate limiting is off.
func newRateLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	rlCfg := ratelimit.Config{
		Enabled:           true,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstCapacity:     cfg.RateLimit.BurstCapacity,
	}
	if rdb != nil {
		return ratelimit.NewRedisTokenBucket(rdb, rlCfg, "ratelimit:")
	}
	return ratelimit.NewLocal(rlCfg)
}

// HealthCheck pings the database and, when enabled, Redis.
func (c *Container) HealthCheck(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Flush pending events before closing the connection
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain NATS: %w", err))
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %w", errors.Join(errs...))
	}

	return nil
}
