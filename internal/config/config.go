package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"budgetcal/internal/core"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	PropagationLocal = "local"
	PropagationAMQP  = "amqp"
)

const minJWTSecretLength = 16

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string
	UsersFile    string

	// Propagation
	PropagationMode string
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string

	// Sessions
	JWTSecret        string
	SessionTTL       time.Duration
	SessionCacheSize int

	// Calendar
	CalendarStart string
	CalendarEnd   string
	DailyLimit    float64
	DefaultColor  string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetcal.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		UsersFile:    getEnv("USERS_FILE", ""),

		PropagationMode: getEnv("PROPAGATION_MODE", PropagationLocal),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "budgetcal"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "color_propagation"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		SessionTTL:       getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 1000),

		CalendarStart: getEnv("CALENDAR_START", "2025-12"),
		CalendarEnd:   getEnv("CALENDAR_END", "2026-12"),
		DailyLimit:    getEnvFloat("DAILY_LIMIT", 6000000),
		DefaultColor:  getEnv("DEFAULT_COLOR", core.DefaultColor),
	}
}

// Validate collects every problem with the configuration into one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	if c.UsersFile != "" {
		if _, err := os.Stat(c.UsersFile); err != nil {
			errors = append(errors, fmt.Sprintf("users file '%s' is not readable: %v", c.UsersFile, err))
		}
	}

	switch c.PropagationMode {
	case PropagationLocal:
	case PropagationAMQP:
		if c.DataBackend == BackendMemory {
			errors = append(errors, "amqp propagation needs a shared database backend, not memory")
		}
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP_URL is required when PROPAGATION_MODE is amqp")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid propagation mode '%s': must be one of [%s %s]", c.PropagationMode, PropagationLocal, PropagationAMQP))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	if c.SessionTTL < time.Minute || c.SessionTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session ttl %v: must be between 1 minute and 30 days", c.SessionTTL))
	}
	if c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}

	start, startErr := core.ParseYearMonth(c.CalendarStart)
	if startErr != nil {
		errors = append(errors, fmt.Sprintf("invalid CALENDAR_START '%s': expected YYYY-MM", c.CalendarStart))
	}
	end, endErr := core.ParseYearMonth(c.CalendarEnd)
	if endErr != nil {
		errors = append(errors, fmt.Sprintf("invalid CALENDAR_END '%s': expected YYYY-MM", c.CalendarEnd))
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		errors = append(errors, fmt.Sprintf("CALENDAR_END %s is before CALENDAR_START %s", end, start))
	}

	if c.DailyLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid daily limit %v: must not be negative", c.DailyLimit))
	}
	if err := core.ValidateColor(c.DefaultColor); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default color '%s': must be #rgb or #rrggbb", c.DefaultColor))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Months returns the parsed calendar range. Call after Validate.
func (c *Config) Months() (start, end core.YearMonth, err error) {
	if start, err = core.ParseYearMonth(c.CalendarStart); err != nil {
		return
	}
	end, err = core.ParseYearMonth(c.CalendarEnd)
	return
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
