package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:",squash"`
	DB         DatabaseConfig   `mapstructure:",squash"`
	Redis      RedisConfig      `mapstructure:",squash"`
	RateLimit  RateLimitConfig  `mapstructure:",squash"`
	Pagination PaginationConfig `mapstructure:",squash"`
	NATS       NATSConfig       `mapstructure:",squash"`
	Logger     LoggerConfig     `mapstructure:",squash"`
}

// AppConfig holds configuration for the application servers
type AppConfig struct {
	Env                   string `mapstructure:"APP_ENV"`
	HTTPPort              string `mapstructure:"HTTP_PORT"`
	GRPCPort              string `mapstructure:"GRPC_PORT"`
	ShutdownTimeoutSecs   int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
	RequestTimeoutSecs    int    `mapstructure:"HTTP_REQUEST_TIMEOUT_SECONDS"`
	MaxBodyBytes          int64  `mapstructure:"HTTP_MAX_BODY_BYTES"`
	CORSAllowOriginsValue string `mapstructure:"CORS_ALLOW_ORIGINS"`
}

// ShutdownTimeout bounds graceful shutdown.
func (c AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// RequestTimeout bounds a single HTTP request. Zero disables the limit.
func (c AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// CORSAllowOrigins splits the comma separated origin list.
func (c AppConfig) CORSAllowOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowOriginsValue, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseConfig holds configuration for the database
type DatabaseConfig struct {
	Driver              string `mapstructure:"DB_DRIVER"` // postgres, mysql, sqlite
	Host                string `mapstructure:"DB_HOST"`
	Port                string `mapstructure:"DB_PORT"`
	User                string `mapstructure:"DB_USER"`
	Password            string `mapstructure:"DB_PASSWORD"`
	Name                string `mapstructure:"DB_NAME"`
	SSLMode             string `mapstructure:"DB_SSLMODE"`
	RawDSN              string `mapstructure:"DB_DSN"`
	MaxOpenConns        int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns        int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetimeSecs int    `mapstructure:"DB_CONN_MAX_LIFETIME_SECONDS"`
	ConnMaxIdleTimeSecs int    `mapstructure:"DB_CONN_MAX_IDLE_TIME_SECONDS"`
	AutoMigrate         bool   `mapstructure:"DB_AUTO_MIGRATE"`
}

// RedisConfig holds configuration for the cache and distributed rate limiter
type RedisConfig struct {
	Enabled         bool   `mapstructure:"REDIS_ENABLED"`
	Host            string `mapstructure:"REDIS_HOST"`
	Port            string `mapstructure:"REDIS_PORT"`
	Password        string `mapstructure:"REDIS_PASSWORD"`
	DB              int    `mapstructure:"REDIS_DB"`
	MaxRetries      int    `mapstructure:"REDIS_MAX_RETRIES"`
	PoolSize        int    `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConn     int    `mapstructure:"REDIS_MIN_IDLE_CONN"`
	CacheTTLSeconds int    `mapstructure:"REDIS_CACHE_TTL_SECONDS"`
}

// CacheTTL is the lifetime of a cached user record.
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RateLimitConfig holds token bucket parameters shared by HTTP and gRPC
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64 `mapstructure:"RATE_LIMIT_REQUESTS_PER_SECOND"`
	BurstCapacity     int     `mapstructure:"RATE_LIMIT_BURST_CAPACITY"`
}

// PaginationConfig holds listing defaults
type PaginationConfig struct {
	DefaultSize int64 `mapstructure:"PAGINATION_DEFAULT_SIZE"`
	MaxSize     int64 `mapstructure:"PAGINATION_MAX_SIZE"`
}

// NATSConfig holds the event bus address. An empty URL disables events.
type NATSConfig struct {
	URL string `mapstructure:"NATS_URL"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string  `mapstructure:"LOG_LEVEL"`
	Format           string  `mapstructure:"LOG_FORMAT"`
	OutputPath       string  `mapstructure:"LOG_OUTPUT_PATH"`
	SlowQuerySeconds float64 `mapstructure:"LOG_SLOW_QUERY_SECONDS"`
	EnableSampling   bool    `mapstructure:"LOG_ENABLE_SAMPLING"`
	GormLevel        string  `mapstructure:"LOG_GORM_LEVEL"`
	ServiceName      string  `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string  `mapstructure:"SERVICE_VERSION"`
}

// LoadConfig reads configuration from an optional .env, an optional app.env
// under path, and environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	// .env only seeds variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvDependentDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)
	v.SetDefault("HTTP_REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("HTTP_MAX_BODY_BYTES", 1<<20)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "user_service")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME_SECONDS", 300)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONN", 2)
	v.SetDefault("REDIS_CACHE_TTL_SECONDS", 300)

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_REQUESTS_PER_SECOND", 10.0)
	v.SetDefault("RATE_LIMIT_BURST_CAPACITY", 20)

	v.SetDefault("PAGINATION_DEFAULT_SIZE", 10)
	v.SetDefault("PAGINATION_MAX_SIZE", 100)

	v.SetDefault("NATS_URL", "")

	v.SetDefault("LOG_OUTPUT_PATH", "stdout")
	v.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	v.SetDefault("LOG_GORM_LEVEL", "warn")
	v.SetDefault("SERVICE_NAME", "user-service")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
}

// applyEnvDependentDefaults picks logger defaults once APP_ENV is known from
// any source.
func applyEnvDependentDefaults(v *viper.Viper) {
	if v.GetString("APP_ENV") == "production" {
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LOG_FORMAT", "json")
		v.SetDefault("LOG_ENABLE_SAMPLING", true)
		return
	}
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_ENABLE_SAMPLING", false)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of postgres, mysql, sqlite (got %q)", c.DB.Driver))
	}
	if c.DB.Driver == "sqlite" && c.DB.RawDSN == "" && c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME or DB_DSN is required for sqlite"))
	}
	if c.Pagination.DefaultSize < 1 {
		errs = append(errs, errors.New("PAGINATION_DEFAULT_SIZE must be at least 1"))
	}
	if c.Pagination.MaxSize < c.Pagination.DefaultSize {
		errs = append(errs, errors.New("PAGINATION_MAX_SIZE must not be below PAGINATION_DEFAULT_SIZE"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstCapacity < 1) {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS_PER_SECOND and RATE_LIMIT_BURST_CAPACITY must be positive"))
	}
	if c.Redis.Enabled && c.Redis.CacheTTLSeconds < 1 {
		errs = append(errs, errors.New("REDIS_CACHE_TTL_SECONDS must be positive"))
	}
	if c.App.ShutdownTimeoutSecs < 1 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT_SECONDS must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the data source name for the configured driver. DB_DSN, when
// set, is used verbatim.
func (c *DatabaseConfig) DSN() string {
	if c.RawDSN != "" {
		return c.RawDSN
	}
	switch c.Driver {
	case "mysql":
		// clientFoundRows makes RowsAffected count matched rows on UPDATE.
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case "sqlite":
		return c.Name
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
	}
}

// ConnMaxLifetime is the maximum age of a pooled connection.
func (c *DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSecs) * time.Second
}

// ConnMaxIdleTime is how long a pooled connection may stay idle.
func (c *DatabaseConfig) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.ConnMaxIdleTimeSecs) * time.Second
}
