package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/fetchguard/internal/policy"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Upstream      UpstreamConfig
	Policy        PolicyConfig
	Admin         AdminConfig
	Database      *DatabaseConfig // Optional: block audit storage. When nil, blocks are only logged.
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	TLS               struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// UpstreamConfig holds the application fetchguard proxies to
type UpstreamConfig struct {
	URL           string
	FlushInterval time.Duration
}

// PolicyConfig holds the process-wide isolation policy settings.
// File, when set, takes precedence over the individual fields, which then
// only supply the defaults the file overrides.
type PolicyConfig struct {
	Enabled           bool
	File              string
	WatchFile         bool
	EnforceSameSite   bool
	LogOnBlock        bool
	ReportOnly        bool
	AssetPathPrefix   string
	AssetPathPatterns []string
}

// AdminConfig holds admin API configuration. The admin API is mounted only
// when JWTSecret is set.
type AdminConfig struct {
	JWTSecret      string
	Issuer         string
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuditConfig holds the block audit worker pool configuration
type AuditConfig struct {
	BufferSize  int
	WorkerCount int
	StopTimeout time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getPort(),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout:   getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Upstream: UpstreamConfig{
			URL:           getEnv("UPSTREAM_URL", ""),
			FlushInterval: getEnvAsDuration("UPSTREAM_FLUSH_INTERVAL", 0),
		},
		Policy: PolicyConfig{
			Enabled:           getEnvAsBool("POLICY_ENABLED", false),
			File:              getEnv("POLICY_FILE", ""),
			WatchFile:         getEnvAsBool("POLICY_WATCH", true),
			EnforceSameSite:   getEnvAsBool("POLICY_ENFORCE_SAME_SITE", false),
			LogOnBlock:        getEnvAsBool("POLICY_LOG_ON_BLOCK", true),
			ReportOnly:        getEnvAsBool("POLICY_REPORT_ONLY", false),
			AssetPathPrefix:   getEnv("POLICY_ASSET_PATH_PREFIX", ""),
			AssetPathPatterns: getEnvAsList("POLICY_ASSET_PATH_PATTERNS"),
		},
		Admin: AdminConfig{
			JWTSecret:      getEnv("ADMIN_JWT_SECRET", ""),
			Issuer:         getEnv("ADMIN_JWT_ISSUER", "fetchguard"),
			AllowedOrigins: getEnvAsList("ADMIN_ALLOWED_ORIGINS"),
		},
		Database: loadDatabaseConfig(),
		Audit: AuditConfig{
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKERS", 2),
			StopTimeout: getEnvAsDuration("AUDIT_STOP_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream URL is required: set UPSTREAM_URL")
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream URL must be an absolute http(s) URL: %q", c.Upstream.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream URL scheme must be http or https: %q", u.Scheme)
	}

	// Policy options are validated here so a bad prefix never reaches a request
	if _, err := policy.FromOptions(c.Policy.Options()); err != nil {
		return fmt.Errorf("policy configuration: %w", err)
	}

	if c.Admin.JWTSecret != "" && len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("admin JWT secret must be at least 32 bytes")
	}

	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0 {
		return fmt.Errorf("audit buffer size and worker count must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// AdminEnabled reports whether the admin API should be mounted
func (c *Config) AdminEnabled() bool {
	return c.Admin.JWTSecret != ""
}

// Options returns the policy options described by the environment
func (c PolicyConfig) Options() policy.Options {
	opts := policy.DefaultOptions()
	opts.EnforceSameSite = c.EnforceSameSite
	opts.LogOnBlock = c.LogOnBlock
	opts.ReportOnly = c.ReportOnly
	opts.AssetPathPrefix = c.AssetPathPrefix
	opts.AssetPathPatterns = append([]string(nil), c.AssetPathPatterns...)
	return opts
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither DATABASE_URL nor DB_HOST is set.
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", ""),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "fetchguard"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping empty items
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
