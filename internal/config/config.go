package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

var validBackends = []string{BackendFile, BackendSQLite, BackendMongo, BackendMemory}

type Config struct {
	// HTTP Server
	Port           string
	MaxUploadBytes int64

	// RateLimitPerMinute caps write requests per client; 0 disables it.
	RateLimitPerMinute int

	// Ledger persistence
	DataBackend    string
	LedgerKey      string
	LedgerFilePath string
	SQLiteDBPath   string
	MongoURI       string
	MongoDatabase  string

	// AMQP (optional; empty URL disables change events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror / import
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// Worker
	MirrorInterval time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),

		RateLimitPerMinute: int(getEnvInt64("RATE_LIMIT_PER_MINUTE", 120)),

		DataBackend:    getEnv("DATA_BACKEND", BackendFile),
		LedgerKey:      getEnv("LEDGER_KEY", "budget:tx:v1"),
		LedgerFilePath: getEnv("LEDGER_FILE_PATH", "./data/ledger.json"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/gagyebu.db"),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDatabase:  getEnv("MONGO_DATABASE", "gagyebu"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gagyebu"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		MirrorInterval: getEnvDuration("MIRROR_INTERVAL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// SheetsConfigured reports whether a spreadsheet and some credentials are set.
func (c *Config) SheetsConfigured() bool {
	if c.GoogleSpreadsheetID == "" {
		return false
	}
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" ||
		c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != "" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

// Level maps LogLevel to a slog level. Unknown values mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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

	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero or positive", c.RateLimitPerMinute))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if strings.TrimSpace(c.LedgerKey) == "" {
		errors = append(errors, "ledger key cannot be empty")
	}

	switch c.DataBackend {
	case BackendFile:
		if c.LedgerFilePath == "" {
			errors = append(errors, "ledger file path cannot be empty when using file backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errors = append(errors, "MONGO_URI is required when using mongo backend")
		} else if u, err := url.Parse(c.MongoURI); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Mongo URI: %v", err))
		} else if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
			errors = append(errors, fmt.Sprintf("invalid Mongo URI scheme '%s': must be 'mongodb' or 'mongodb+srv'", u.Scheme))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "Mongo database name cannot be empty when using mongo backend")
		}
	}

	// Validate AMQP URL if provided
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

	// Google Sheets: partial OAuth setups are a mistake
	hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
	hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
	if hasClient && !hasToken {
		errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with an OAuth client")
	}
	for _, f := range []struct{ name, path string }{
		{"Google OAuth client file", c.GoogleOAuthClientFile},
		{"Google OAuth token file", c.GoogleOAuthTokenFile},
		{"Google service account file", c.GoogleServiceAccountFile},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("%s does not exist: %s", f.name, f.path))
		}
	}
	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
	}

	if c.MirrorInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at least 1 second", c.MirrorInterval))
	} else if c.MirrorInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at most 24 hours", c.MirrorInterval))
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
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
