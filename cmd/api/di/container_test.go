package di

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-service/internal/config"
	"user-service/internal/usecase/user"
	"user-service/pkg/ratelimit"
)

func loadSQLiteConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", ":memory:")
	t.Setenv("LOG_GORM_LEVEL", "silent")
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestNewContainer_Minimal(t *testing.T) {
	cfg := loadSQLiteConfig(t)

	c, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Nil(t, c.RedisClient)
	assert.Nil(t, c.NATS)
	assert.Nil(t, c.RateLimiter)
	assert.NotNil(t, c.GinHandler)
	assert.NotNil(t, c.GRPCService)
	assert.NoError(t, c.HealthCheck(context.Background()))

	created, err := c.UserUC.CreateUser(context.Background(), user.CreateUserRequest{
		FirstName: "John", LastName: "Doe", Position: "Engineer", PhoneNumber: "1", Email: "a@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewContainer_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	cfg := loadSQLiteConfig(t)

	c, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.RedisClient)
	assert.IsType(t, &ratelimit.RedisTokenBucket{}, c.RateLimiter)

	created, err := c.UserUC.CreateUser(context.Background(), user.CreateUserRequest{
		FirstName: "John", LastName: "Doe", Position: "Engineer", PhoneNumber: "1", Email: "a@x.com",
	})
	require.NoError(t, err)

	_, err = c.UserUC.GetUser(context.Background(), user.GetUserRequest{ID: created.ID})
	require.NoError(t, err)
	assert.True(t, mr.Exists("users:id:1"))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestNewContainer_LocalRateLimiter(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	cfg := loadSQLiteConfig(t)

	c, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &ratelimit.Local{}, c.RateLimiter)
}

func TestNewContainer_RedisUnavailable(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "127.0.0.1")
	t.Setenv("REDIS_PORT", "1")
	cfg := loadSQLiteConfig(t)

	_, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize Redis")
}
