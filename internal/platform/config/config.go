package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v10"
)

// DefaultAPIBasePath is the fallback base path for the HTTP API.
const DefaultAPIBasePath = "/api/v1"

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Reply policies.
const (
	ReplyPolicyRootOnly = "root_only"
	ReplyPolicyTolerant = "tolerant"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Application configuration
	App AppConfig

	// Token configuration
	Auth AuthConfig

	// Object storage configuration for post images
	Storage StorageConfig

	// Sentry configuration
	Sentry SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

// Address returns the server address in host:port format
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string        `env:"POSTGRES_USER" envDefault:"inkwell"`
	Password        string        `env:"POSTGRES_PASSWORD" envDefault:"inkwell"`
	Database        string        `env:"POSTGRES_DB" envDefault:"inkwell"`
	SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxConns        int32         `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	MinConns        int32         `env:"POSTGRES_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout  time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" envDefault:"10s"`
	StartupWait     time.Duration `env:"POSTGRES_STARTUP_WAIT" envDefault:"30s"`
	MigrationsPath  string        `env:"POSTGRES_MIGRATIONS_PATH"`
}

// ConnectionString returns the PostgreSQL connection string in URL format
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
		int(d.ConnectTimeout.Seconds()),
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `env:"REDIS_ENABLED" envDefault:"true"`
	Host         string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port         int           `env:"REDIS_PORT" envDefault:"6379"`
	Password     string        `env:"REDIS_PASSWORD" envDefault:""`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
}

// Address returns the Redis address in host:port format
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	LogLevel       string        `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"APP_LOG_FORMAT" envDefault:"text"` // text or json
	LogFile        string        `env:"APP_LOG_FILE" envDefault:""`
	LogMaxSizeMB   int           `env:"APP_LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups  int           `env:"APP_LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays  int           `env:"APP_LOG_MAX_AGE_DAYS" envDefault:"30"`
	TimeZone       string        `env:"APP_TIMEZONE" envDefault:"UTC"`
	Storage        string        `env:"APP_STORAGE" envDefault:"postgres"` // postgres or memory
	CacheEnabled   bool          `env:"APP_CACHE_ENABLED" envDefault:"true"`
	SearchCacheTTL time.Duration `env:"APP_SEARCH_CACHE_TTL" envDefault:"30s"`
	EnableMetrics  bool          `env:"APP_ENABLE_METRICS" envDefault:"true"`
	APIBasePath    string        `env:"APP_API_BASE_PATH" envDefault:"/api/v1"`
	ReplyPolicy    string        `env:"APP_REPLY_POLICY" envDefault:"root_only"`
	LikeMaxRetries int           `env:"APP_LIKE_MAX_RETRIES" envDefault:"3"`
	CORSOrigins    []string      `env:"APP_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RequestTimeout time.Duration `env:"APP_REQUEST_TIMEOUT" envDefault:"5s"`

	RateLimitEnabled     bool          `env:"APP_RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitWindow      time.Duration `env:"APP_RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMaxRequests int           `env:"APP_RATE_LIMIT_MAX_REQUESTS" envDefault:"120"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" envDefault:""`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"inkwell"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Enabled             bool          `env:"S3_ENABLED" envDefault:"false"`
	Endpoint            string        `env:"S3_ENDPOINT" envDefault:"http://localhost:9000"`
	AccessKey           string        `env:"S3_ACCESS_KEY" envDefault:""`
	SecretKey           string        `env:"S3_SECRET_KEY" envDefault:""`
	Bucket              string        `env:"S3_BUCKET" envDefault:"post-images"`
	PresignTTL          time.Duration `env:"S3_PRESIGN_TTL" envDefault:"15m"`
	PublicBaseURL       string        `env:"S3_PUBLIC_BASE_URL" envDefault:""`
	MaxImageBytes       int64         `env:"S3_MAX_IMAGE_BYTES" envDefault:"5242880"`
	AllowedContentTypes []string      `env:"S3_ALLOWED_CONTENT_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/webp"`
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN" envDefault:""`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:""`
	Release     string `env:"SENTRY_RELEASE" envDefault:""`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from environ instead of the process
// environment. Unset keys take their defaults.
func LoadFrom(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.App.validate(),
		c.Database.validate(c.App.Storage),
		c.Redis.validate(),
		c.Storage.validate(),
	)
}

func (s ServerConfig) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}
	return nil
}

func (d DatabaseConfig) validate(storage string) error {
	if storage != StoragePostgres {
		return nil
	}
	var errs []error
	if d.Host == "" {
		errs = append(errs, fmt.Errorf("database host is required"))
	}
	if d.User == "" {
		errs = append(errs, fmt.Errorf("database user is required"))
	}
	if d.Database == "" {
		errs = append(errs, fmt.Errorf("database name is required"))
	}
	if d.MaxConns < d.MinConns {
		errs = append(errs, fmt.Errorf("database max connections (%d) must be >= min connections (%d)", d.MaxConns, d.MinConns))
	}
	return errors.Join(errs...)
}

func (r RedisConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if r.DB < 0 || r.DB > 15 {
		return fmt.Errorf("invalid redis database: %d (must be 0-15)", r.DB)
	}
	return nil
}

func (a AppConfig) validate() error {
	var errs []error
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, a.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", a.LogLevel))
	}
	if a.LogFormat != "text" && a.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format: %s (must be text or json)", a.LogFormat))
	}
	if a.Storage != StoragePostgres && a.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("invalid storage backend: %s (must be postgres or memory)", a.Storage))
	}
	if a.ReplyPolicy != ReplyPolicyRootOnly && a.ReplyPolicy != ReplyPolicyTolerant {
		errs = append(errs, fmt.Errorf("invalid reply policy: %s (must be root_only or tolerant)", a.ReplyPolicy))
	}
	if a.LikeMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("like max retries must be >= 0"))
	}
	if a.RateLimitEnabled {
		if a.RateLimitWindow <= 0 {
			errs = append(errs, fmt.Errorf("rate limit window must be positive"))
		}
		if a.RateLimitMaxRequests <= 0 {
			errs = append(errs, fmt.Errorf("rate limit max requests must be positive"))
		}
	}
	return errors.Join(errs...)
}

func (s StorageConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	var errs []error
	if s.Bucket == "" {
		errs = append(errs, fmt.Errorf("s3 bucket is required"))
	}
	if s.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("s3 max image bytes must be positive"))
	}
	return errors.Join(errs...)
}
