package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report export
	GoogleSpreadsheetID   string
	GoogleSheetPrefix     string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// View cache
	CacheSize          int
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	// Subscription lifecycle
	WarnWithinDays int

	// Alert worker
	AlertRecipients    string
	AlertFallbackEmail string
	SMTPAddr           string
	SMTPFrom           string
	SMTPUsername       string
	SMTPPassword       string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pocketwise.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pocketwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "alerts"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetPrefix:     getEnv("GOOGLE_SHEET_PREFIX", "Trend"),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		CacheSize:          getEnvInt("CACHE_SIZE", 500),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),

		WarnWithinDays: getEnvInt("WARN_WITHIN_DAYS", 3),

		AlertRecipients:    getEnv("ALERT_RECIPIENTS", ""),
		AlertFallbackEmail: getEnv("ALERT_FALLBACK_EMAIL", ""),
		SMTPAddr:           getEnv("SMTP_ADDR", ""),
		SMTPFrom:           getEnv("SMTP_FROM", ""),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// AMQP is optional; alerts are dropped when it is not configured
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

	// Export is optional; credentials only matter once a spreadsheet is set
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	// Validate cache configuration
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}
	if c.CacheSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache sweep interval %v: must be at least 1 second", c.CacheSweepInterval))
	}

	if c.WarnWithinDays < 0 || c.WarnWithinDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid warn window %d: must be between 0 and 365 days", c.WarnWithinDays))
	}

	if c.AlertFallbackEmail != "" {
		if _, err := mail.ParseAddress(c.AlertFallbackEmail); err != nil {
			errors = append(errors, fmt.Sprintf("invalid alert fallback email '%s': %v", c.AlertFallbackEmail, err))
		}
	}
	if c.SMTPAddr != "" && c.SMTPFrom == "" {
		errors = append(errors, "SMTP sender address cannot be empty when SMTP_ADDR is provided")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
