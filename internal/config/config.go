// Package config loads trading rules and runtime configuration for the
// market-making bot. Trading rules are keyed by "{BASE}_{QUOTE}" in a YAML
// file (default: trading_rules.yml); secrets are overridable via
// KRAKEN_* environment variables, layered on top of viper's AutomaticEnv.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"kraken-mm/pkg/types"
)

// Config is the top-level configuration.
type Config struct {
	DryRun  bool          `mapstructure:"dry_run"`
	Kraken  KrakenConfig  `mapstructure:"kraken"`
	Logging LoggingConfig `mapstructure:"logging"`

	// TradingRules is the "{BASE}_{QUOTE}" keyed table loaded from the
	// trading rules file. Resolved into a single types.TradingRules by
	// TradingRulesFor once base/quote are known.
	TradingRules map[string]TradingRulesEntry `mapstructure:"trading_rules"`
}

// KrakenConfig holds Kraken API credentials. Both fields are normally
// supplied via KRAKEN_API_KEY / KRAKEN_API_SECRET rather than committed to
// the YAML file.
type KrakenConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TradingHoursEntry mirrors types.TradingHours for YAML decoding.
type TradingHoursEntry struct {
	StartHour    int  `mapstructure:"start_hour"`
	EndHour      int  `mapstructure:"end_hour"`
	WeekendPause bool `mapstructure:"weekend_pause"`
}

// TradingRulesEntry mirrors types.TradingRules for YAML decoding.
type TradingRulesEntry struct {
	PriceTick          float64            `mapstructure:"price_tick"`
	QuantityStep       float64            `mapstructure:"quantity_step"`
	MinHalfSpread      float64            `mapstructure:"min_half_spread"`
	MaxOrderNotional   float64            `mapstructure:"max_order_notional"`
	MaxExposureInQuote float64            `mapstructure:"max_exposure_in_quote"`
	TradingHours       *TradingHoursEntry `mapstructure:"trading_hours"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("KRAKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("KRAKEN_API_KEY"); key != "" {
		cfg.Kraken.APIKey = key
	}
	if secret := os.Getenv("KRAKEN_API_SECRET"); secret != "" {
		cfg.Kraken.APISecret = secret
	}
	if os.Getenv("KRAKEN_DRY_RUN") == "true" || os.Getenv("KRAKEN_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks that every configured trading-rules entry is well-formed.
// Per-pair presence is checked separately by TradingRulesFor once the
// instrument is known.
func (c *Config) Validate() error {
	if len(c.TradingRules) == 0 {
		return fmt.Errorf("trading_rules must not be empty")
	}
	for pair, rules := range c.TradingRules {
		if err := rules.toTypes().Validate(); err != nil {
			return fmt.Errorf("invalid trading_rules for pair %s: %w", pair, err)
		}
	}
	return nil
}

// TradingRulesFor resolves the configured rules for base/quote, keyed
// "{BASE}_{QUOTE}" as required.
func (c *Config) TradingRulesFor(base, quote string) (types.TradingRules, error) {
	key := strings.ToUpper(base) + "_" + strings.ToUpper(quote)
	entry, ok := c.TradingRules[key]
	if !ok {
		return types.TradingRules{}, fmt.Errorf("unsupported trading pair, missing trading rules for %q", key)
	}
	return entry.toTypes(), nil
}

func (e TradingRulesEntry) toTypes() types.TradingRules {
	rules := types.TradingRules{
		PriceTick:          e.PriceTick,
		QuantityStep:       e.QuantityStep,
		MinHalfSpread:      e.MinHalfSpread,
		MaxOrderNotional:   e.MaxOrderNotional,
		MaxExposureInQuote: e.MaxExposureInQuote,
	}
	if e.TradingHours != nil {
		rules.TradingHours = &types.TradingHours{
			StartHour:    e.TradingHours.StartHour,
			EndHour:      e.TradingHours.EndHour,
			WeekendPause: e.TradingHours.WeekendPause,
		}
	}
	return rules
}
