package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DatabaseDriver は永続化に使用するストアの種類を表す。
type DatabaseDriver string

const (
	// DriverPostgres はPostgreSQL（デフォルト）。
	DriverPostgres DatabaseDriver = "postgres"
	// DriverSQLite は単一ノード向けのSQLite。
	DriverSQLite DatabaseDriver = "sqlite"
)

// minBcryptCost はパスワードハッシュの最小ワークファクタ。
const minBcryptCost = 10

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseDriver DatabaseDriver
	DatabaseURL    string

	// Token
	JWTAccessSecret  string
	JWTRefreshSecret string

	// Session
	BcryptCost           int
	RefreshTokenRotation bool

	// Rate Limit
	RateLimitGeneral int
	RateLimitWindow  time.Duration
	RateLimitAuth    int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	Environment string
	ServerPort  string

	// Cookie
	CookieSecure bool
	CookieDomain string
	CSRFEnabled  bool

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTAccessSecret = os.Getenv("JWT_ACCESS_SECRET")
	if cfg.JWTAccessSecret == "" {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}

	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	if cfg.JWTRefreshSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	driver := DatabaseDriver(strings.ToLower(getEnvString("DATABASE_DRIVER", string(DriverPostgres))))
	switch driver {
	case DriverPostgres, DriverSQLite:
		cfg.DatabaseDriver = driver
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER: %q", driver)
	}

	// Optional fields with defaults
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	if cfg.BcryptCost < minBcryptCost {
		cfg.BcryptCost = minBcryptCost
	}
	cfg.RefreshTokenRotation = getEnvBool("REFRESH_TOKEN_ROTATION", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 200)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	if err := cfg.validateLimits(); err != nil {
		return nil, err
	}
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = cfg.IsProduction()
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", false)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// validateLimits は起動後に全リクエストを失敗させる値を読み込み時に弾く。
func (c *Config) validateLimits() error {
	if c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be at most %d, got %d", bcrypt.MaxCost, c.BcryptCost)
	}
	if c.RateLimitGeneral <= 0 {
		return fmt.Errorf("RATE_LIMIT_GENERAL must be positive, got %d", c.RateLimitGeneral)
	}
	if c.RateLimitAuth <= 0 {
		return fmt.Errorf("RATE_LIMIT_AUTH must be positive, got %d", c.RateLimitAuth)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
