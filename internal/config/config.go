// Package config loads server and CLI settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerly/networth-engine/internal/currency"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env               string
	Port              string
	DatabaseURL       string // empty → in-memory store
	RedisURL          string // only used together with DatabaseURL
	CacheTTL          time.Duration
	BaseCurrency      string // pivot of the rate table
	ReportingCurrency string // default for users without their own
	RatesURL          string // may contain {base}; empty → stored rates only
	RatesJSONPath     string
	RatesRefresh      time.Duration
	RatesTimeout      time.Duration
	GeminiAPIKey      string // empty → regex parser only
	GeminiModel       string
	FallbackUsersDSN  string // SQLite DSN of the fallback user directory
	SeedDemoUser      bool
}

var defaults = map[string]any{
	"PORT":               "8080",
	"APP_ENV":            "development",
	"CACHE_TTL":          "30s",
	"BASE_CURRENCY":      "AED",
	"REPORTING_CURRENCY": "AED",
	"RATES_JSONPATH":     "$.rates",
	"RATES_REFRESH":      "1h",
	"RATES_TIMEOUT":      "5s",
	"GEMINI_MODEL":       "gemini-2.0-flash",
	"FALLBACK_USERS_DSN": "file::memory:?cache=shared",
	"SEED_DEMO_USER":     true,
}

// Load loads config from env and an optional .env file in the working directory.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile loads config from env and the dotenv file at path. A missing file
// is not an error; environment variables win over file values.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	base, err := currency.Validate(v.GetString("BASE_CURRENCY"))
	if err != nil {
		return nil, fmt.Errorf("BASE_CURRENCY: %w", err)
	}
	reporting, err := currency.Validate(v.GetString("REPORTING_CURRENCY"))
	if err != nil {
		return nil, fmt.Errorf("REPORTING_CURRENCY: %w", err)
	}

	cfg := &Config{
		Env:               v.GetString("APP_ENV"),
		Port:              v.GetString("PORT"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		RedisURL:          v.GetString("REDIS_URL"),
		CacheTTL:          v.GetDuration("CACHE_TTL"),
		BaseCurrency:      base,
		ReportingCurrency: reporting,
		RatesURL:          strings.TrimSpace(v.GetString("RATES_URL")),
		RatesJSONPath:     v.GetString("RATES_JSONPATH"),
		RatesRefresh:      v.GetDuration("RATES_REFRESH"),
		RatesTimeout:      v.GetDuration("RATES_TIMEOUT"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		GeminiModel:       v.GetString("GEMINI_MODEL"),
		FallbackUsersDSN:  v.GetString("FALLBACK_USERS_DSN"),
		SeedDemoUser:      v.GetBool("SEED_DEMO_USER"),
	}

	if cfg.RatesRefresh <= 0 {
		return nil, fmt.Errorf("RATES_REFRESH must be positive, got %q", v.GetString("RATES_REFRESH"))
	}
	if cfg.RatesTimeout <= 0 {
		return nil, fmt.Errorf("RATES_TIMEOUT must be positive, got %q", v.GetString("RATES_TIMEOUT"))
	}
	return cfg, nil
}

// Production reports whether APP_ENV is "production".
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}
