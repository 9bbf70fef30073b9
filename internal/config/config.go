// Package config loads downloader configuration from environment variables
// and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/batterysnoopy/crypto-downloader/pkg/client"
	"github.com/batterysnoopy/crypto-downloader/pkg/ratelimit"
)

// Config holds all configuration for the dumper application.
type Config struct {
	// BaseURL is the historical data host.
	BaseURL string `mapstructure:"base_url"`

	// Tickers to dump. Empty means every ticker the listing offers.
	Tickers []string `mapstructure:"tickers"`

	// Frequency is the kline interval, e.g. "1d" or "1min".
	Frequency string `mapstructure:"frequency"`

	// Dates restricts the run to specific dates (YYYY-MM-DD). Empty
	// fetches everything available.
	Dates []string `mapstructure:"dates"`

	// OutputDir receives one combined CSV per ticker.
	OutputDir string `mapstructure:"output_dir"`

	// SaveDir keeps a per-archive CSV copy when set.
	SaveDir string `mapstructure:"save_dir"`

	// Concurrency bounds parallel archive downloads per ticker.
	Concurrency int `mapstructure:"concurrency"`

	// TickerWorkers bounds how many tickers are dumped at once.
	TickerWorkers int `mapstructure:"ticker_workers"`

	// RedisAddr enables the shared listing cache and request budget
	// when set, e.g. "localhost:6379".
	RedisAddr string `mapstructure:"redis_addr"`

	// BudgetLimit is the number of requests allowed per budget window.
	BudgetLimit int `mapstructure:"budget_limit"`

	// BudgetWindow is the budget window length.
	BudgetWindow time.Duration `mapstructure:"budget_window"`

	// CacheTTL is how long cached listings stay fresh.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// Pretty enables human-readable console logs.
	Pretty bool `mapstructure:"pretty"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from environment variables and an optional
// config.yaml. Environment variables take precedence over file values.
//
// Expected environment variables:
//   - KUCOIN_BASE_URL (optional, defaults to the production host)
//   - KUCOIN_TICKERS (comma-separated)
//   - KUCOIN_FREQUENCY
//   - KUCOIN_DATES (comma-separated, YYYY-MM-DD)
//   - KUCOIN_OUTPUT_DIR
//   - KUCOIN_SAVE_DIR (optional)
//   - KUCOIN_CONCURRENCY (optional)
//   - KUCOIN_TICKER_WORKERS (optional)
//   - KUCOIN_REDIS_ADDR (optional)
//   - KUCOIN_BUDGET_LIMIT, KUCOIN_BUDGET_WINDOW (optional)
//   - KUCOIN_CACHE_TTL (optional)
//   - KUCOIN_LOG_LEVEL, KUCOIN_PRETTY (optional)
//   - KUCOIN_METRICS_ADDR (optional)
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("KUCOIN")
	v.AutomaticEnv()

	v.SetDefault("base_url", client.DefaultBaseURL)
	v.SetDefault("frequency", "1d")
	v.SetDefault("output_dir", "data")
	v.SetDefault("concurrency", 10)
	v.SetDefault("ticker_workers", 2)
	v.SetDefault("budget_limit", ratelimit.DefaultLimit)
	v.SetDefault("budget_window", ratelimit.DefaultWindow)
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.kucoin-dump")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	// AutomaticEnv alone does not surface keys without defaults to
	// Unmarshal, so bind every key explicitly.
	for _, key := range []string{
		"base_url", "tickers", "frequency", "dates", "output_dir",
		"save_dir", "concurrency", "ticker_workers", "redis_addr",
		"budget_limit", "budget_window", "cache_ttl", "log_level",
		"pretty", "metrics_addr",
	} {
		v.BindEnv(key, "KUCOIN_"+strings.ToUpper(key))
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AutomaticEnv delivers list values as a single string.
	config.Tickers = splitList(config.Tickers)
	config.Dates = splitList(config.Dates)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if c.Frequency == "" {
		return fmt.Errorf("frequency must not be empty")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	for _, d := range c.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}
	return nil
}

// splitList expands comma-separated entries, so KUCOIN_TICKERS=a,b,c and a
// YAML list both work.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
