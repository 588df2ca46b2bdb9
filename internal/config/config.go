package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	History   HistoryConfig
	Analyzer  AnalyzerConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	UploadMaxBytes        int
	CORSAllowOrigins      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	RunMigrations    bool
	ConnMaxIdleSec   int32
	ConnMaxLifeSec   int32
	OpTimeoutSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Service string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret         string
	TokenTTLMinutes   int
	BcryptCost        int
	MinPasswordLength int
}

// HistoryConfig bounds history page sizes.
type HistoryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// AnalyzerConfig points the analysis orchestrator at an OpenAI-compatible model.
type AnalyzerConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
	CaseTopK       int
	DocumentTopK   int
}

// RateLimitConfig throttles analysis requests per user.
type RateLimitConfig struct {
	AnalyzePerMinute int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "symptom-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 90),
			UploadMaxBytes:        getEnvAsInt("UPLOAD_MAX_BYTES", 10<<20),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		},
		Postgres: PostgresConfig{
			DSN:              os.Getenv("POSTGRES_DSN"),
			MaxConns:         int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:         int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:    getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:   int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:   int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			OpTimeoutSeconds: getEnvAsInt("STORAGE_OP_TIMEOUT_SECONDS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Service: getEnv("APP_NAME", "symptom-service"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLMinutes:   getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 7*24*60),
			BcryptCost:        getEnvAsInt("AUTH_BCRYPT_COST", 12),
			MinPasswordLength: getEnvAsInt("AUTH_MIN_PASSWORD_LENGTH", 6),
		},
		History: HistoryConfig{
			DefaultLimit: getEnvAsInt("HISTORY_DEFAULT_LIMIT", 10),
			MaxLimit:     getEnvAsInt("HISTORY_MAX_LIMIT", 50),
		},
		Analyzer: AnalyzerConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			APIKey:         os.Getenv("LLM_API_KEY"),
			Model:          getEnv("LLM_MODEL", "gemini-2.0-flash"),
			TimeoutSeconds: getEnvAsInt("ANALYZER_TIMEOUT_SECONDS", 60),
			CaseTopK:       getEnvAsInt("RAG_TOP_K", 3),
			DocumentTopK:   getEnvAsInt("RAG_DOC_TOP_K", 5),
		},
		RateLimit: RateLimitConfig{
			AnalyzePerMinute: getEnvAsInt("RATE_LIMIT_ANALYZE_PER_MINUTE", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.MinPasswordLength <= 0 {
		errs = append(errs, errors.New("AUTH_MIN_PASSWORD_LENGTH must be positive"))
	}
	if c.History.DefaultLimit <= 0 || c.History.MaxLimit <= 0 {
		errs = append(errs, errors.New("history limits must be positive"))
	} else if c.History.DefaultLimit > c.History.MaxLimit {
		errs = append(errs, errors.New("HISTORY_DEFAULT_LIMIT exceeds HISTORY_MAX_LIMIT"))
	}
	if c.Postgres.OpTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("STORAGE_OP_TIMEOUT_SECONDS must be positive"))
	}
	return errors.Join(errs...)
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

// OpTimeout bounds a single store operation.
func (p PostgresConfig) OpTimeout() time.Duration {
	return time.Duration(p.OpTimeoutSeconds) * time.Second
}

// TokenTTL returns the session token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// Timeout bounds a single analyzer call.
func (a AnalyzerConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Enabled reports whether an upstream model is configured.
func (a AnalyzerConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
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
