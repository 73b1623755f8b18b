package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Mode string

type TradingMode string

const (
	ModeDryRun  Mode = "dry_run"
	ModeTestnet Mode = "testnet"
	ModeLive    Mode = "live"
)

const (
	TradingSpot    TradingMode = "spot"
	TradingFutures TradingMode = "futures"
)

type Config struct {
	Mode        Mode           `yaml:"mode"`
	TradingMode TradingMode    `yaml:"trading_mode"`
	Exchange    ExchangeConfig `yaml:"exchange"`
	StopLoss    StopLossConfig `yaml:"stop_loss"`
	Retry       RetryConfig    `yaml:"retry"`
	DryRunRules RulesConfig    `yaml:"dry_run_rules"`
	Audit       AuditConfig    `yaml:"audit"`
	Alert       TelegramConfig `yaml:"alert"`
	Log         LogConfig      `yaml:"log"`
}

type ExchangeConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	RestBaseURL    string `yaml:"rest_base_url"`
	HTTPTimeoutSec int64  `yaml:"http_timeout_sec"`
}

type StopLossConfig struct {
	// LimitRatio shapes the limit price relative to the stop price.
	// It is intentionally not range-checked here: the placer validates the
	// resulting stop/limit ordering per order and rejects bad combinations.
	LimitRatio Decimal `yaml:"limit_ratio"`
}

type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int64   `yaml:"initial_delay_ms"`
	MaxDelayMs     int64   `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

type RulesConfig struct {
	MinQty      Decimal `yaml:"min_qty"`
	MinNotional Decimal `yaml:"min_notional"`
	PriceTick   Decimal `yaml:"price_tick"`
	QtyStep     Decimal `yaml:"qty_step"`
}

type AuditConfig struct {
	Dir string `yaml:"dir"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Decimal decodes YAML scalars through their exact textual form, so a
// ratio like 0.99 never becomes a float on the way in.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decimal values must be scalars: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Decimal = decimal.Zero
		return nil
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("cannot parse %q as a decimal: %w", raw, err)
	}
	d.Decimal = parsed
	return nil
}

func (d Decimal) MarshalYAML() (interface{}, error) {
	return d.Decimal.String(), nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.TradingMode = TradingMode(strings.ToLower(strings.TrimSpace(string(c.TradingMode))))
	c.Exchange.APIKey = strings.TrimSpace(c.Exchange.APIKey)
	c.Exchange.APISecret = strings.TrimSpace(c.Exchange.APISecret)
	c.Exchange.RestBaseURL = strings.TrimSpace(c.Exchange.RestBaseURL)
	c.Audit.Dir = strings.TrimSpace(c.Audit.Dir)
	c.Alert.BotToken = strings.TrimSpace(c.Alert.BotToken)
	c.Alert.ChatID = strings.TrimSpace(c.Alert.ChatID)
	c.Alert.APIBaseURL = strings.TrimSpace(c.Alert.APIBaseURL)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDryRun
	}
	if c.TradingMode == "" {
		c.TradingMode = TradingFutures
	}
	if c.StopLoss.LimitRatio.Cmp(decimal.Zero) == 0 {
		c.StopLoss.LimitRatio = Decimal{decimal.RequireFromString("0.99")}
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelayMs == 0 {
		c.Retry.InitialDelayMs = 200
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 30000
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 15
	}
	if c.Alert.APIBaseURL == "" {
		c.Alert.APIBaseURL = "https://api.telegram.org"
	}
	if c.Alert.TimeoutSec == 0 {
		c.Alert.TimeoutSec = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDryRun, ModeTestnet, ModeLive:
	default:
		return fmt.Errorf("mode must be one of dry_run/testnet/live, got %q", c.Mode)
	}
	switch c.TradingMode {
	case TradingSpot, TradingFutures:
	default:
		return fmt.Errorf("trading_mode must be spot or futures, got %q", c.TradingMode)
	}
	if c.Mode != ModeDryRun {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_key/api_secret required for mode %q", c.Mode)
		}
	}
	if c.StopLoss.LimitRatio.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("stop_loss.limit_ratio must be > 0, got %s", c.StopLoss.LimitRatio)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	if c.Alert.Enabled && (c.Alert.BotToken == "" || c.Alert.ChatID == "") {
		return fmt.Errorf("alert.bot_token/chat_id required when alert.enabled")
	}
	return nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Exchange.HTTPTimeoutSec) * time.Second
}
