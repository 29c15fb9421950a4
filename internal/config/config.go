package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines credential signing material, lifetimes and login policy.
// Access and refresh credentials are signed with independent secrets.
type AuthConfig struct {
	AccessSecret         string
	RefreshSecret        string
	AccessTTLMinutes     int
	RefreshTTLHours      int
	BcryptCost           int
	LoginMaxAttempts     int
	LoginCooldownMinutes int
	RefreshHeader        string
	RefreshCookie        string
}

// Development signing secrets used when none are configured. Validate refuses
// them in production.
const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AccessSecret:         getEnv("AUTH_ACCESS_SECRET", devAccessSecret),
			RefreshSecret:        getEnv("AUTH_REFRESH_SECRET", devRefreshSecret),
			AccessTTLMinutes:     getEnvAsInt("AUTH_ACCESS_TTL_MINUTES", 60),
			RefreshTTLHours:      getEnvAsInt("AUTH_REFRESH_TTL_HOURS", 120),
			BcryptCost:           getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginMaxAttempts:     getEnvAsInt("AUTH_LOGIN_MAX_ATTEMPTS", 5),
			LoginCooldownMinutes: getEnvAsInt("AUTH_LOGIN_COOLDOWN_MINUTES", 15),
			RefreshHeader:        getEnv("AUTH_REFRESH_HEADER", "X-Refresh-Token"),
			RefreshCookie:        getEnv("AUTH_REFRESH_COOKIE", "refresh_token"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that cannot be expressed with defaults.
func (c *Config) Validate() error {
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("access and refresh secrets must be set")
	}
	if c.App.Env == "production" &&
		(c.Auth.AccessSecret == devAccessSecret || c.Auth.RefreshSecret == devRefreshSecret) {
		return errors.New("development signing secrets are not allowed in production")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	if c.Auth.AccessTTLMinutes <= 0 || c.Auth.RefreshTTLHours <= 0 {
		return errors.New("credential TTLs must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTTL is the lifetime of a freshly minted access credential.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTTLMinutes) * time.Minute
}

// RefreshTTL is the lifetime of a freshly minted refresh credential.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTTLHours) * time.Hour
}

// LoginCooldown is how long failed login attempts are remembered.
func (a AuthConfig) LoginCooldown() time.Duration {
	return time.Duration(a.LoginCooldownMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
