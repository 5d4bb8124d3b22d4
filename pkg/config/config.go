package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for cdr-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Ingestion policy configuration
	Ingest IngestConfig `yaml:"ingest"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// APIKey is the shared key callers must present in the X-API-Key header.
	// Secret - env only.
	APIKey string `yaml:"-" env:"API_KEY"`

	// EnableVerification controls whether JWT bearer tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"cdr"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"cdr_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`

	// ConnMaxLifetimeMinutes and ConnMaxIdleMinutes bound how long a pooled
	// connection lives and idles before it is recycled.
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" env:"PGCONN_MAX_LIFETIME_MINUTES" env-default:"60"`
	ConnMaxIdleMinutes     int `yaml:"conn_max_idle_minutes" env:"PGCONN_MAX_IDLE_MINUTES" env-default:"30"`

	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// IngestConfig holds ingestion policy settings.
type IngestConfig struct {
	// InvalidBNumbersStr is a comma-separated denylist of B-party values that
	// are never legitimate call destinations. The exact set varies between
	// operator feeds, so it is policy, not code.
	InvalidBNumbersStr string `yaml:"invalid_b_numbers" env:"INGEST_INVALID_B_NUMBERS" env-default:"0,000,UN,8331"`

	// InvalidBNumbers is the parsed form of InvalidBNumbersStr.
	InvalidBNumbers []string `yaml:"-"`

	// SessionCacheTTLSeconds bounds how long a positive session-existence
	// check is trusted without re-reading the database.
	SessionCacheTTLSeconds int `yaml:"session_cache_ttl_seconds" env:"INGEST_SESSION_CACHE_TTL_SECONDS" env-default:"300"`

	// SessionCacheSize bounds the number of cached session IDs.
	SessionCacheSize int `yaml:"session_cache_size" env:"INGEST_SESSION_CACHE_SIZE" env-default:"1024"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (PGPASSWORD, API_KEY) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	c.Ingest.InvalidBNumbers = parseList(c.Ingest.InvalidBNumbersStr)

	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth verification enabled but no JWKS endpoints configured")
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// parseList splits a comma-separated string, trimming whitespace and
// dropping empty entries.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
