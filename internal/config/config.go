// Package config defines the configuration for a backtest run. Config
// is loaded from a YAML file (default: configs/config.yaml) with
// select fields overridable via MGVSIM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for one simulation run. It
// maps directly onto the YAML file structure.
type Config struct {
	Market   MarketConfig    `mapstructure:"market"`
	Feed     FeedConfig      `mapstructure:"feed"`
	Output   OutputConfig    `mapstructure:"output"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Users    []UserConfig    `mapstructure:"users"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
}

// MarketConfig names the traded pair.
type MarketConfig struct {
	Base  string `mapstructure:"base"`
	Quote string `mapstructure:"quote"`
}

// FeedConfig locates the price-feed file to replay.
type FeedConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls where journal files land.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls zerolog's global level and format.
type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	Verbose      bool   `mapstructure:"verbose"`
	ShowProgress bool   `mapstructure:"show_progress"`
}

// UserConfig describes one simulated account.
type UserConfig struct {
	ID            string  `mapstructure:"id"`
	InitialNative float64 `mapstructure:"initial_native"`
}

// StrategyConfig describes one strategy instance, its construction
// parameters, and which users it runs for. Kind selects the registered
// builder ("kandel", "arbitrage", "limit_order"); Params is
// interpreted by that builder.
type StrategyConfig struct {
	ID     string             `mapstructure:"id"`
	Kind   string             `mapstructure:"kind"`
	Users  []string           `mapstructure:"users"`
	Params map[string]float64 `mapstructure:"params"`
}

// Load reads config from a YAML file with environment overrides.
// MGVSIM_FEED_PATH and MGVSIM_OUTPUT_DIR override the equivalent YAML
// fields so a run's input/output can be redirected without editing
// the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MGVSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if p := os.Getenv("MGVSIM_FEED_PATH"); p != "" {
		cfg.Feed.Path = p
	}
	if d := os.Getenv("MGVSIM_OUTPUT_DIR"); d != "" {
		cfg.Output.Dir = d
	}
	if v := os.Getenv("MGVSIM_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Verbose = b
		}
	}

	return &cfg, nil
}

// Validate checks required fields and cross-references between
// strategies and users.
func (c *Config) Validate() error {
	if c.Market.Base == "" {
		return fmt.Errorf("market.base is required")
	}
	if c.Market.Quote == "" {
		return fmt.Errorf("market.quote is required")
	}
	if c.Feed.Path == "" {
		return fmt.Errorf("feed.path is required")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("at least one user is required")
	}

	userIDs := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("users[].id is required")
		}
		userIDs[u.ID] = true
	}

	strategyIDs := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if s.ID == "" {
			return fmt.Errorf("strategies[].id is required")
		}
		if s.Kind == "" {
			return fmt.Errorf("strategies[%s].kind is required", s.ID)
		}
		strategyIDs[s.ID] = true
		for _, uid := range s.Users {
			if !userIDs[uid] {
				return fmt.Errorf("strategies[%s] references unknown user %q", s.ID, uid)
			}
		}
	}

	return nil
}
