// Package config loads and validates the runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/tiertrader/internal/risk"
)

// Config is the full configuration surface. Defaults are overlaid by an
// optional YAML file, then by environment variables for the secrets and
// endpoints that normally live outside the file.
type Config struct {
	// Signal feed
	SignalURL          string        `yaml:"signal_url"`
	ConfThreshold      float64       `yaml:"conf_threshold"`
	SignalLimit        int           `yaml:"signal_limit"`
	SignalTimeout      time.Duration `yaml:"signal_timeout"`
	MaxEntriesPerCycle int           `yaml:"max_entries_per_cycle"`

	// Venue
	Asset       string        `yaml:"asset"`
	APIKey      string        `yaml:"api_key"`
	APISecret   string        `yaml:"api_secret"`
	Testnet     bool          `yaml:"testnet"`
	CallTimeout time.Duration `yaml:"call_timeout"`

	// Sizing and protection
	Tiers             []risk.Tier        `yaml:"tiers"`
	VolatilityBuckets map[string]float64 `yaml:"volatility_buckets"`
	DefaultVolatility float64            `yaml:"default_volatility"`

	// Lifecycle
	TTLHours           float64       `yaml:"ttl_hours"`
	FlipThreshold      float64       `yaml:"flip_threshold"`
	MinConfidence      float64       `yaml:"min_confidence"`
	DecayHalfLifeHours float64       `yaml:"decay_half_life_hours"`
	PartialTPEnabled   bool          `yaml:"partial_tp_enabled"`
	TP1Fraction        float64       `yaml:"tp1_fraction"`
	PartialTolerance   float64       `yaml:"partial_tolerance"`
	ProtectiveDelay    time.Duration `yaml:"protective_delay"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	StaleOrderMaxAge   time.Duration `yaml:"stale_order_max_age"`

	// Scheduling
	TradeInterval   time.Duration `yaml:"trade_interval"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`

	// Control surface and persistence
	HTTPAddr  string `yaml:"http_addr"`
	DBConnStr string `yaml:"db_conn_str"`
	DBMaxOpen int    `yaml:"db_max_open"`
	DBMaxIdle int    `yaml:"db_max_idle"`

	// Notifications
	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`
}

// Default returns the shipped configuration.
func Default() Config {
	return Config{
		ConfThreshold:      0.60,
		SignalLimit:        50,
		SignalTimeout:      5 * time.Second,
		MaxEntriesPerCycle: 1,

		Asset:       "USDT",
		Testnet:     true,
		CallTimeout: 10 * time.Second,

		Tiers:             risk.DefaultTiers(),
		DefaultVolatility: 0.02,

		TTLHours:           48,
		FlipThreshold:      0.60,
		MinConfidence:      0.30,
		DecayHalfLifeHours: 6,
		PartialTPEnabled:   false,
		TP1Fraction:        0.5,
		PartialTolerance:   0.02,
		ProtectiveDelay:    2 * time.Second,
		SettleDelay:        time.Second,
		StaleOrderMaxAge:   30 * time.Minute,

		TradeInterval:   15 * time.Minute,
		SweepInterval:   time.Hour,
		JanitorInterval: 5 * time.Minute,

		HTTPAddr:  "127.0.0.1:8000",
		DBMaxOpen: 10,
		DBMaxIdle: 5,

		NotificationRetries: 3,
		NotificationDelay:   5 * time.Second,
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and the environment. A malformed file or an invalid resulting
// configuration is fatal at startup by contract; callers should treat
// the returned error that way.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.SignalURL, "SIGNAL_URL")
	setStr(&c.APIKey, "API_KEY")
	setStr(&c.APISecret, "API_SECRET")
	setStr(&c.DBConnStr, "DB_CONN_STR")
	setStr(&c.TelegramToken, "TELEGRAM_TOKEN")
	setStr(&c.TelegramChatID, "TELEGRAM_CHAT_ID")
	setStr(&c.HTTPAddr, "HTTP_ADDR")
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		c.Testnet = v == "true" || v == "1"
	}
}

// Validate rejects configurations that would misprice or mismanage
// positions. Tier table validation is delegated to risk.NewTierTable.
func (c *Config) Validate() error {
	if _, err := risk.NewTierTable(c.Tiers); err != nil {
		return err
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return fmt.Errorf("conf_threshold %.4f outside [0, 1]", c.ConfThreshold)
	}
	if c.FlipThreshold < 0 || c.FlipThreshold > 1 {
		return fmt.Errorf("flip_threshold %.4f outside [0, 1]", c.FlipThreshold)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %.4f outside [0, 1]", c.MinConfidence)
	}
	if c.TTLHours <= 0 {
		return fmt.Errorf("ttl_hours must be positive, got %.2f", c.TTLHours)
	}
	if c.DecayHalfLifeHours <= 0 {
		return fmt.Errorf("decay_half_life_hours must be positive, got %.2f", c.DecayHalfLifeHours)
	}
	if c.TP1Fraction <= 0 || c.TP1Fraction >= 1 {
		return fmt.Errorf("tp1_fraction %.4f outside (0, 1)", c.TP1Fraction)
	}
	if c.DefaultVolatility <= 0 {
		return fmt.Errorf("default_volatility must be positive, got %.4f", c.DefaultVolatility)
	}
	for sym, v := range c.VolatilityBuckets {
		if v <= 0 {
			return fmt.Errorf("volatility bucket for %s must be positive, got %.4f", sym, v)
		}
	}
	if c.TradeInterval <= 0 || c.SweepInterval <= 0 || c.JanitorInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	return nil
}
