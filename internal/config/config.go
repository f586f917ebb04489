package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sheetledger/internal/core"
	"sheetledger/internal/fx"
)

type Config struct {
	// Backend selection
	DataBackend string

	// Google Sheets
	Spreadsheet              string // ID, URL or name
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// SQLite
	SQLiteDBPath string

	// Memory backend seed files
	DataDirectory string

	// Ledger
	HomeCurrency      string
	SkipInactiveRules bool

	// Exchange rates
	RatesURL    string
	RatesTTL    time.Duration
	StaticRates string // "USD=31.5,SGD=23.4"; replaces the rate page when set

	RowCacheTTL time.Duration

	// AMQP report notifications (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	LogLevel string
}

func Load() *Config {
	return &Config{
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		Spreadsheet:              getEnv("SPREADSHEET", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/sheetledger.db"),
		DataDirectory: getEnv("MEMORY_DATA_DIR", "data"),

		HomeCurrency:      core.NormalizeCurrency(getEnv("HOME_CURRENCY", "SGD")),
		SkipInactiveRules: getEnvBool("SKIP_INACTIVE_RULES", false),

		RatesURL:    getEnv("RATES_URL", fx.DefaultRatesURL),
		RatesTTL:    getEnvDuration("RATES_TTL", fx.DefaultTTL),
		StaticRates: getEnv("STATIC_RATES", ""),
		RowCacheTTL: getEnvDuration("ROW_CACHE_TTL", time.Minute),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "sheetledger"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "recurring.reports"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"memory", "sheets", "sqlite"}
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

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
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

	if c.DataBackend == "sheets" {
		hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" ||
			os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
		hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
		if !hasServiceAccount && !(hasClient && hasToken) {
			errors = append(errors, "sheets backend needs GOOGLE_SERVICE_ACCOUNT_JSON/FILE or both an OAuth client (GOOGLE_OAUTH_CLIENT_FILE/JSON) and token (GOOGLE_OAUTH_TOKEN_FILE/JSON)")
		}
		for _, f := range []struct{ label, path string }{
			{"service account file", c.GoogleServiceAccountFile},
			{"OAuth client file", c.GoogleOAuthClientFile},
			{"OAuth token file", c.GoogleOAuthTokenFile},
		} {
			if f.path == "" {
				continue
			}
			if _, err := os.Stat(f.path); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google %s does not exist: %s", f.label, f.path))
			}
		}
	}

	if err := core.ValidateCurrency(c.HomeCurrency); err != nil {
		errors = append(errors, fmt.Sprintf("invalid home currency '%s': %v", c.HomeCurrency, err))
	}

	if c.StaticRates != "" {
		if _, err := fx.ParseStaticRates(c.StaticRates); err != nil {
			errors = append(errors, fmt.Sprintf("invalid STATIC_RATES: %v", err))
		}
	} else if u, err := url.Parse(c.RatesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid rates URL '%s': must be http or https", c.RatesURL))
	}

	if c.RatesTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rates TTL %v: must be at least 1 second", c.RatesTTL))
	}
	if c.RowCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid row cache TTL %v: must not be negative", c.RowCacheTTL))
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
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Plain numbers are seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
