// Package config loads and validates the article registry configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the ART_ prefix (e.g., ART_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments.
//
// The JWT secret is read from ART_JWT_SECRET and never from the YAML file so it
// cannot end up committed alongside deployment configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetAddress returns the host:port listen address
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// GetDSN builds a PostgreSQL connection string from the configuration
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret signs and verifies session tokens. Populated from ART_JWT_SECRET only.
	JWTSecret string `mapstructure:"-"`
	// TokenTTL is the lifetime of issued session tokens
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// BootstrapPassword, when set, allows user creation without an existing
	// top-level admin. Intended for first-run seeding only.
	BootstrapPassword string `mapstructure:"-"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	// DefaultBackend selects the storage backend ("s3" or "local")
	DefaultBackend string             `mapstructure:"default_backend"`
	S3             S3StorageConfig    `mapstructure:"s3"`
	Local          LocalStorageConfig `mapstructure:"local"`
	// MaxUploadBytes caps upload request size (default 10 MiB)
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// S3StorageConfig holds S3 storage configuration
type S3StorageConfig struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
	// Endpoint is an optional S3-compatible endpoint (MinIO etc.)
	Endpoint string `mapstructure:"endpoint"`
	// Static credentials; when empty the AWS default credential chain is used
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// CDNDomain is the public domain files are served from (e.g. a CloudFront
	// distribution in front of the bucket). Returned URLs are built from it.
	CDNDomain string `mapstructure:"cdn_domain"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	Path string `mapstructure:"path"`
	// BaseURL is the URL prefix files are served from
	BaseURL string `mapstructure:"base_url"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerMinute is the per-client limit (user id or IP)
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	BurstSize         int `mapstructure:"burst_size"`
	// GlobalRequestsPerMinute is the whole-service ceiling enforced through
	// Redis. Zero disables the global limiter.
	GlobalRequestsPerMinute int `mapstructure:"global_requests_per_minute"`
	// RedisAddr is the Redis host:port backing the global limiter
	RedisAddr string `mapstructure:"redis_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// NotificationsConfig holds event notification configuration
type NotificationsConfig struct {
	// WebhookURL is the Discord-compatible webhook endpoint events are posted to.
	// Empty disables notifications entirely.
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from the given path (or the default search paths when
// empty), applies defaults, merges ART_* environment variables, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/article-registry")
	}

	v.SetEnvPrefix("ART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment only
	cfg.Auth.JWTSecret = os.Getenv("ART_JWT_SECRET")
	cfg.Auth.BootstrapPassword = os.Getenv("ART_BOOTSTRAP_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that would prevent startup
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	switch c.Storage.DefaultBackend {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when the s3 backend is selected")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when the s3 backend is selected")
		}
	case "local":
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("storage.local.path is required when the local backend is selected")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.DefaultBackend)
	}
	if c.RateLimit.GlobalRequestsPerMinute > 0 && c.RateLimit.RedisAddr == "" {
		return fmt.Errorf("rate_limit.redis_addr is required when the global limiter is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "article_registry")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Auth
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)

	// Storage
	v.SetDefault("storage.default_backend", "local")
	v.SetDefault("storage.local.path", "./uploads")
	v.SetDefault("storage.local.base_url", "http://localhost:3001/uploads")
	v.SetDefault("storage.max_upload_bytes", int64(10*1024*1024))

	// Rate limiting
	v.SetDefault("rate_limit.requests_per_minute", 600)
	v.SetDefault("rate_limit.burst_size", 10)
	v.SetDefault("rate_limit.global_requests_per_minute", 0)
	v.SetDefault("rate_limit.redis_addr", "")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Notifications
	v.SetDefault("notifications.webhook_url", "")
	v.SetDefault("notifications.timeout", 10*time.Second)
}
