// Package config loads and validates the service configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/identware/identity-service/pkg/config"
	"github.com/identware/identity-service/pkg/database"
)

const (
	devAccessSecret  = "dev-access-secret-do-not-use-in-prod"
	devRefreshSecret = "dev-refresh-secret-do-not-use-in-prod"

	minSecretLen = 32
)

// Config is the full service configuration.
type Config struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"identity"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"identity_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"identity"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	// Access and refresh tokens are signed with distinct secrets so one
	// class can never verify as the other.
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET" envDefault:"dev-access-secret-do-not-use-in-prod"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:"dev-refresh-secret-do-not-use-in-prod"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"identity-service"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"10m"`
	VerificationTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
	RoleCacheTTL    time.Duration `env:"ROLE_CACHE_TTL" envDefault:"10m"`
	DefaultRole     string        `env:"DEFAULT_ROLE" envDefault:"user"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.1/32"`

	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that must never reach production.
func (c *Config) Validate() error {
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.BcryptCost < 10 || c.BcryptCost > 15 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 15")
	}

	if c.IsProduction() {
		if c.JWTAccessSecret == devAccessSecret || c.JWTRefreshSecret == devRefreshSecret {
			return fmt.Errorf("development JWT secrets must not be used in production")
		}
		if len(c.JWTAccessSecret) < minSecretLen || len(c.JWTRefreshSecret) < minSecretLen {
			return fmt.Errorf("JWT secrets must be at least %d characters in production", minSecretLen)
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Postgres returns the database pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	cfg := database.DefaultPostgresConfig()
	cfg.Host = c.PostgresHost
	cfg.Port = c.PostgresPort
	cfg.User = c.PostgresUser
	cfg.Password = c.PostgresPassword
	cfg.DBName = c.PostgresDB
	cfg.SSLMode = c.PostgresSSLMode
	return cfg
}

// Redis returns the redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
