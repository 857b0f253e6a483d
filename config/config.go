package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rustyeddy/splitbot/market"
	"gopkg.in/yaml.v3"
)

// Config is the complete bot configuration. Structure comes from a YAML (or
// JSON) file; credentials and other secrets overlay from the environment.
type Config struct {
	Account     AccountConfig             `json:"account" yaml:"account"`
	Strategy    StrategyConfig            `json:"strategy" yaml:"strategy"`
	Schedule    ScheduleConfig            `json:"schedule" yaml:"schedule"`
	Store       StoreConfig               `json:"store" yaml:"store"`
	Notify      NotifyConfig              `json:"notify" yaml:"notify"`
	Instruments []market.InstrumentConfig `json:"instruments" yaml:"instruments"`
}

// AccountConfig scopes the strategy's claim on the account.
type AccountConfig struct {
	SleeveRatio float64 `json:"sleeve_ratio" yaml:"sleeve_ratio"`
	IndexID     string  `json:"index_id" yaml:"index_id"`
}

// StrategyConfig contains tiering and snapshot parameters.
type StrategyConfig struct {
	TierCount    int     `json:"tier_count" yaml:"tier_count"`
	Lookback     int     `json:"lookback" yaml:"lookback"`
	RecentPeriod int     `json:"recent_period" yaml:"recent_period"`
	RecentWeight float64 `json:"recent_weight" yaml:"recent_weight"`
}

// ScheduleConfig drives the poll loop and the market-open gate.
type ScheduleConfig struct {
	Interval    string `json:"interval" yaml:"interval"`         // e.g. "10m"
	ClosedSleep string `json:"closed_sleep" yaml:"closed_sleep"` // e.g. "30m"
	MarketOpen  string `json:"market_open" yaml:"market_open"`   // "09:00"
	MarketClose string `json:"market_close" yaml:"market_close"` // "15:30"
	Timezone    string `json:"timezone" yaml:"timezone"`
}

// ParseInterval converts the poll interval string to a time.Duration.
func (s ScheduleConfig) ParseInterval() (time.Duration, error) {
	return time.ParseDuration(s.Interval)
}

// ParseClosedSleep converts the market-closed sleep string to a duration.
func (s ScheduleConfig) ParseClosedSleep() (time.Duration, error) {
	return time.ParseDuration(s.ClosedSleep)
}

// StoreConfig locates the ledger database.
type StoreConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// NotifyConfig configures alert delivery. An empty URL means log-only.
type NotifyConfig struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url" envconfig:"SPLITBOT_WEBHOOK_URL"`
}

// Load reads the config file, overlays environment variables and validates.
// A .env file is applied first when present; its absence is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := envconfig.Process("", &cfg.Notify); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}

	for i := range cfg.Instruments {
		cfg.Instruments[i].ApplyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.SleeveRatio <= 0 || c.Account.SleeveRatio > 1 {
		return fmt.Errorf("account.sleeve_ratio must be in (0,1]")
	}
	if c.Account.IndexID == "" {
		return fmt.Errorf("account.index_id is required")
	}
	if c.Strategy.TierCount < 2 {
		return fmt.Errorf("strategy.tier_count must be at least 2")
	}
	if c.Strategy.Lookback < 61 {
		return fmt.Errorf("strategy.lookback must be at least 61")
	}
	if c.Strategy.RecentWeight < 0 || c.Strategy.RecentWeight > 1 {
		return fmt.Errorf("strategy.recent_weight must be in [0,1]")
	}
	if _, err := c.Schedule.ParseInterval(); err != nil {
		return fmt.Errorf("schedule.interval: %w", err)
	}
	if _, err := c.Schedule.ParseClosedSleep(); err != nil {
		return fmt.Errorf("schedule.closed_sleep: %w", err)
	}
	for _, hm := range []string{c.Schedule.MarketOpen, c.Schedule.MarketClose} {
		if _, err := time.Parse("15:04", hm); err != nil {
			return fmt.Errorf("schedule market hours must be HH:MM: %w", err)
		}
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	seen := map[string]bool{}
	var weightSum float64
	for _, inst := range c.Instruments {
		if inst.ID == "" {
			return fmt.Errorf("instrument id is required")
		}
		if seen[inst.ID] {
			return fmt.Errorf("duplicate instrument %q", inst.ID)
		}
		seen[inst.ID] = true
		if inst.Weight <= 0 {
			return fmt.Errorf("instrument %q weight must be positive", inst.ID)
		}
		weightSum += inst.Weight
	}
	if weightSum > 1.0001 {
		return fmt.Errorf("instrument weights sum to %.4f, must not exceed 1", weightSum)
	}
	return nil
}

// SaveToFile writes the configuration to a file, YAML or JSON by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			SleeveRatio: 0.5,
			IndexID:     "101",
		},
		Strategy: StrategyConfig{
			TierCount:    5,
			Lookback:     120,
			RecentPeriod: 20,
			RecentWeight: 0.6,
		},
		Schedule: ScheduleConfig{
			Interval:    "10m",
			ClosedSleep: "30m",
			MarketOpen:  "09:00",
			MarketClose: "15:30",
			Timezone:    "Asia/Tokyo",
		},
		Store: StoreConfig{
			DBPath: "./splitbot.db",
		},
	}
}
