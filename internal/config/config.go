// Package config loads the Portfolio's runtime options (spec §6) from
// environment variables, following the teacher's .env-then-os.Getenv
// convention.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds spec §6's configuration table.
type Config struct {
	// Debug enables verbose per-calculation log traces.
	Debug bool
	// UseMarkPrices prefers MARK over BID/ASK/LAST in the pricing policy
	// (spec §4.2).
	UseMarkPrices bool
	// UseMarkXRates uses mark cross-rates for FX; else a venue-directed
	// quote-driven rate (spec §4.3).
	UseMarkXRates bool
	// ConvertToAccountBaseCurrency converts aggregate results to each
	// account's base currency (spec §4.3).
	ConvertToAccountBaseCurrency bool
	// BarUpdates subscribes to data.bars.* and tracks bar-close prices
	// for the pricing policy's last-resort fallback (spec §4.2 step 4).
	BarUpdates bool
	// MinAccountStateLoggingInterval throttles the per-account
	// account-state log line (spec §4.6 update_account).
	MinAccountStateLoggingInterval time.Duration
	// AdminAPIAddr is the listen address for the read-only admin HTTP
	// surface (SPEC_FULL §4.8).
	AdminAPIAddr string
}

// Load reads the configuration from the environment, loading a local
// .env file first if present (errors from a missing .env are ignored,
// matching the teacher's best-effort local-dev convenience). Invalid
// values are reported, never defaulted silently.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Debug:                          false,
		UseMarkPrices:                  true,
		UseMarkXRates:                  false,
		ConvertToAccountBaseCurrency:   true,
		BarUpdates:                     true,
		MinAccountStateLoggingInterval: 5 * time.Second,
		AdminAPIAddr:                   ":8080",
	}

	var err error
	if cfg.Debug, err = getBool("DEBUG", cfg.Debug); err != nil {
		return nil, err
	}
	if cfg.UseMarkPrices, err = getBool("USE_MARK_PRICES", cfg.UseMarkPrices); err != nil {
		return nil, err
	}
	if cfg.UseMarkXRates, err = getBool("USE_MARK_XRATES", cfg.UseMarkXRates); err != nil {
		return nil, err
	}
	if cfg.ConvertToAccountBaseCurrency, err = getBool("CONVERT_TO_ACCOUNT_BASE_CURRENCY", cfg.ConvertToAccountBaseCurrency); err != nil {
		return nil, err
	}
	if cfg.BarUpdates, err = getBool("BAR_UPDATES", cfg.BarUpdates); err != nil {
		return nil, err
	}
	if cfg.MinAccountStateLoggingInterval, err = getMillisDuration("MIN_ACCOUNT_STATE_LOGGING_INTERVAL_MS", cfg.MinAccountStateLoggingInterval); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("ADMIN_API_ADDR"); ok && v != "" {
		cfg.AdminAPIAddr = v
	}

	return cfg, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: parsing %s=%q: %w", key, v, err)
	}
	return parsed, nil
}

func getMillisDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parsing %s=%q: %w", key, v, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
