package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	DatabaseURL   string
	SQLitePath    string
	RunMigrations bool
	LogFormat     string
	LogLevel      string
	PostingMode   string
	IndexSystem   bool
	Workers       int

	// EnterpriseCurrencyID is the currency ledger exchange rates are quoted
	// against. A run file may name its own.
	EnterpriseCurrencyID int

	// MetricsTextfile, when set, receives the run counters in the
	// Prometheus text format.
	MetricsTextfile string
}

// Load reads the process environment, after merging an optional .env file
// from the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "err", err)
	}
	return Config{
		Environment:   getEnv("APP_ENV", "development"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SQLitePath:    getEnv("SQLITE_PATH", ""),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", true),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PostingMode:   getEnv("PAYROLL_POSTING_MODE", "aggregate"),
		IndexSystem:   getEnvBool("PAYROLL_INDEX_SYSTEM", false),
		Workers:       getEnvInt("PAYROLL_WORKERS", 4),

		EnterpriseCurrencyID: getEnvInt("ENTERPRISE_CURRENCY_ID", 0),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// HasLedger reports whether a ledger database is configured.
func (c Config) HasLedger() bool {
	return strings.TrimSpace(c.DatabaseURL) != "" || strings.TrimSpace(c.SQLitePath) != ""
}

func (c Config) Validate() error {
	switch c.PostingMode {
	case "aggregate", "default", "individual", "individually":
	default:
		return fmt.Errorf("PAYROLL_POSTING_MODE must be aggregate or individual, got %q", c.PostingMode)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.EnterpriseCurrencyID < 0 {
		return fmt.Errorf("ENTERPRISE_CURRENCY_ID must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error")
	}
	if c.Environment == "production" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return nil
}
