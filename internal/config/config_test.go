package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DataBackend:  "memory",
		HomeCurrency: "SGD",
		RatesURL:     "https://rate.bot.com.tw/xrt?Lang=en-US",
		RatesTTL:     time.Hour,
		RowCacheTTL:  time.Minute,
		LogLevel:     "info",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid memory config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid sqlite config",
			mutate: func(c *Config) {
				c.DataBackend = "sqlite"
				c.SQLiteDBPath = "./test.db"
			},
		},
		{
			name:        "invalid backend",
			mutate:      func(c *Config) { c.DataBackend = "postgres" },
			wantErr:     true,
			errorString: "invalid data backend 'postgres'",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.DataBackend = "sqlite"
				c.SQLiteDBPath = ""
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite backend",
		},
		{
			name: "sheets without credentials",
			mutate: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleOAuthClientJSON = "{}"
			},
			wantErr:     true,
			errorString: "sheets backend needs",
		},
		{
			name: "sheets with oauth client and token",
			mutate: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleOAuthClientJSON = "{}"
				c.GoogleOAuthTokenJSON = "{}"
			},
		},
		{
			name:        "bad home currency",
			mutate:      func(c *Config) { c.HomeCurrency = "DOLLARS" },
			wantErr:     true,
			errorString: "invalid home currency",
		},
		{
			name:        "bad rates url",
			mutate:      func(c *Config) { c.RatesURL = "ftp://rates" },
			wantErr:     true,
			errorString: "invalid rates URL",
		},
		{
			name: "static rates replace url",
			mutate: func(c *Config) {
				c.RatesURL = ""
				c.StaticRates = "USD=31.5,SGD=23.4"
			},
		},
		{
			name:        "malformed static rates",
			mutate:      func(c *Config) { c.StaticRates = "USD" },
			wantErr:     true,
			errorString: "invalid STATIC_RATES",
		},
		{
			name:        "rates ttl too short",
			mutate:      func(c *Config) { c.RatesTTL = 500 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid rates TTL 500ms",
		},
		{
			name:        "invalid AMQP URL scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http': must be 'amqp' or 'amqps'",
		},
		{
			name: "AMQP URL without exchange",
			mutate: func(c *Config) {
				c.AMQPURL = "amqp://localhost:5672/"
				c.AMQPRoutingKey = "recurring.reports"
			},
			wantErr:     true,
			errorString: "AMQP exchange name cannot be empty when AMQP URL is provided",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.LogLevel = "verbose" },
			wantErr:     true,
			errorString: "invalid log level 'verbose'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err, tt.errorString)
				}
				return
			}
			if err != nil {
				t.Errorf("Config.Validate() error = %v", err)
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DataBackend = "bogus"
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := strings.Count(err.Error(), "\n- "); got != 2 {
		t.Errorf("got %d listed problems, want 2: %v", got, err)
	}
}

func TestConfig_ValidateWithFiles(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	tmpDir := t.TempDir()
	saFile := filepath.Join(tmpDir, "sa.json")
	if err := os.WriteFile(saFile, []byte(`{"type":"service_account"}`), 0644); err != nil {
		t.Fatalf("Failed to create service account file: %v", err)
	}

	cfg := validConfig()
	cfg.DataBackend = "sheets"
	cfg.GoogleServiceAccountFile = saFile
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid service account file: %v", err)
	}

	cfg.GoogleServiceAccountFile = filepath.Join(tmpDir, "missing.json")
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("missing file error = %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DATA_BACKEND", "HOME_CURRENCY", "RATES_TTL", "SKIP_INACTIVE_RULES", "AMQP_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.DataBackend != "memory" {
		t.Errorf("DataBackend = %q", cfg.DataBackend)
	}
	if cfg.HomeCurrency != "SGD" {
		t.Errorf("HomeCurrency = %q", cfg.HomeCurrency)
	}
	if cfg.RatesTTL != time.Hour {
		t.Errorf("RatesTTL = %v", cfg.RatesTTL)
	}
	if cfg.SkipInactiveRules || cfg.AMQPURL != "" {
		t.Errorf("unexpected optional defaults: %+v", cfg)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("HOME_CURRENCY", "twd")
	t.Setenv("RATES_TTL", "90")
	t.Setenv("SKIP_INACTIVE_RULES", "true")
	cfg := Load()
	if cfg.DataBackend != "sqlite" || cfg.HomeCurrency != "TWD" {
		t.Errorf("got backend %q currency %q", cfg.DataBackend, cfg.HomeCurrency)
	}
	if cfg.RatesTTL != 90*time.Second {
		t.Errorf("RatesTTL = %v, want 90s", cfg.RatesTTL)
	}
	if !cfg.SkipInactiveRules {
		t.Error("SkipInactiveRules = false")
	}
}
