// Package config loads the bot configuration from a YAML file, applies
// defaults, overlays credential environment variables and validates the
// result before the bot is allowed to start.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/momotrade/momo/internal/logger"
)

var validate = validator.New()

// Exchange holds credentials and connection tuning for the exchange client.
type Exchange struct {
	APIKey             string
	SecretKey          string
	Sandbox            bool
	MinRequestInterval time.Duration
}

// Trading holds instrument selection, loop timing and trade amount bounds.
type Trading struct {
	Instruments      []string
	DataInterval     time.Duration
	DecisionInterval time.Duration
	MinTradeAmount   decimal.Decimal
	MaxTradeAmount   decimal.Decimal
	MaxOpenPositions int
	MaxLeverage      int
}

// Strategy holds the oscillator strategy parameters.
type Strategy struct {
	Period              int     `yaml:"period" default:"14" validate:"min=1"`
	OversoldThreshold   float64 `yaml:"oversold_threshold" default:"30"`
	OverboughtThreshold float64 `yaml:"overbought_threshold" default:"70"`
	MinConfidence       float64 `yaml:"min_confidence" default:"0.6" validate:"min=0,max=1"`
	RiskPercentage      float64 `yaml:"risk_percentage" default:"2" validate:"gt=0"`
	StopLossPercentage  float64 `yaml:"stop_loss_percentage" default:"2" validate:"gt=0"`
	MaxPositionSizePct  float64 `yaml:"max_position_size_percentage" default:"10" validate:"gt=0"`
	MinDataPoints       int     `yaml:"min_data_points" default:"50" validate:"min=2"`
	MaxLookback         int     `yaml:"max_lookback" default:"200" validate:"min=2"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool
	Addr    string
}

// metricsTmp carries the raw YAML form. Enabled is a pointer for the same
// reason as exchangeTmp.Sandbox; metrics default to on.
type metricsTmp struct {
	Enabled *bool  `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":9090"`
}

// Config is the fully parsed and validated bot configuration.
type Config struct {
	Exchange Exchange
	Trading  Trading
	Strategy Strategy
	Logging  logger.Config
	Metrics  Metrics
}

// exchangeTmp carries the raw YAML form. Sandbox is a pointer so an
// explicit "sandbox: false" survives defaulting; the default is the safe
// sandbox mode.
type exchangeTmp struct {
	APIKey             string        `yaml:"api_key"`
	SecretKey          string        `yaml:"secret_key"`
	Sandbox            *bool         `yaml:"sandbox"`
	MinRequestInterval time.Duration `yaml:"min_request_interval" default:"100ms"`
}

// tradingTmp carries the raw YAML form; decimal amounts arrive as strings
// and are converted during Load.
type tradingTmp struct {
	Instruments      []string      `yaml:"instruments" validate:"min=1,dive,required"`
	DataInterval     time.Duration `yaml:"data_interval" default:"5s"`
	DecisionInterval time.Duration `yaml:"decision_interval" default:"10s"`
	MinTradeAmount   string        `yaml:"min_trade_amount" default:"10"`
	MaxTradeAmount   string        `yaml:"max_trade_amount" default:"10000"`
	MaxOpenPositions int           `yaml:"max_open_positions" default:"3" validate:"min=1"`
	MaxLeverage      int           `yaml:"max_leverage" default:"1" validate:"min=1"`
}

type configTmp struct {
	Exchange exchangeTmp   `yaml:"exchange"`
	Trading  tradingTmp    `yaml:"trading"`
	Strategy Strategy      `yaml:"strategy"`
	Logging  logger.Config `yaml:"logging"`
	Metrics  metricsTmp    `yaml:"metrics"`
}

// Load reads the YAML file at path, applies defaults and the API_KEY,
// SECRET_KEY and SANDBOX_MODE environment overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := defaults.Set(&tmp); err != nil {
		return nil, errors.Wrap(err, "apply config defaults")
	}

	applyEnvOverrides(&tmp.Exchange)

	if err := validate.Struct(&tmp); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	cfg, err := tmp.build()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(ex *exchangeTmp) {
	if v := os.Getenv("API_KEY"); v != "" {
		ex.APIKey = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		ex.SecretKey = v
	}
	if v := os.Getenv("SANDBOX_MODE"); v != "" {
		sandbox := strings.EqualFold(v, "true") || v == "1"
		ex.Sandbox = &sandbox
	}
}

func (t configTmp) build() (*Config, error) {
	minAmount, err := decimal.NewFromString(t.Trading.MinTradeAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid min_trade_amount %q", t.Trading.MinTradeAmount)
	}
	maxAmount, err := decimal.NewFromString(t.Trading.MaxTradeAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid max_trade_amount %q", t.Trading.MaxTradeAmount)
	}

	sandbox := true
	if t.Exchange.Sandbox != nil {
		sandbox = *t.Exchange.Sandbox
	}
	metricsEnabled := true
	if t.Metrics.Enabled != nil {
		metricsEnabled = *t.Metrics.Enabled
	}

	return &Config{
		Exchange: Exchange{
			APIKey:             t.Exchange.APIKey,
			SecretKey:          t.Exchange.SecretKey,
			Sandbox:            sandbox,
			MinRequestInterval: t.Exchange.MinRequestInterval,
		},
		Trading: Trading{
			Instruments:      t.Trading.Instruments,
			DataInterval:     t.Trading.DataInterval,
			DecisionInterval: t.Trading.DecisionInterval,
			MinTradeAmount:   minAmount,
			MaxTradeAmount:   maxAmount,
			MaxOpenPositions: t.Trading.MaxOpenPositions,
			MaxLeverage:      t.Trading.MaxLeverage,
		},
		Strategy: t.Strategy,
		Logging:  t.Logging,
		Metrics: Metrics{
			Enabled: metricsEnabled,
			Addr:    t.Metrics.Addr,
		},
	}, nil
}

// Validate enforces cross-field constraints the tag validators cannot
// express. The bot re-runs it before starting.
func (c *Config) Validate() error {
	if len(c.Trading.Instruments) == 0 {
		return errors.New("at least one instrument must be configured")
	}
	if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" {
		return errors.New("exchange credentials missing: set api_key/secret_key or API_KEY/SECRET_KEY")
	}
	if c.Exchange.MinRequestInterval < 0 {
		return errors.New("min_request_interval must not be negative")
	}
	if c.Trading.DataInterval <= 0 || c.Trading.DecisionInterval <= 0 {
		return errors.New("loop intervals must be positive")
	}
	if c.Trading.MinTradeAmount.IsNegative() {
		return errors.New("min_trade_amount must not be negative")
	}
	if c.Trading.MaxTradeAmount.LessThan(c.Trading.MinTradeAmount) {
		return errors.New("max_trade_amount must not be below min_trade_amount")
	}
	if c.Strategy.OversoldThreshold <= 0 ||
		c.Strategy.OverboughtThreshold >= 100 ||
		c.Strategy.OversoldThreshold >= c.Strategy.OverboughtThreshold {
		return errors.New("strategy thresholds must satisfy 0 < oversold < overbought < 100")
	}
	if c.Strategy.MinDataPoints < c.Strategy.Period+1 {
		return errors.New("min_data_points must exceed the oscillator period")
	}
	if c.Strategy.MaxLookback < c.Strategy.MinDataPoints {
		return errors.New("max_lookback must be at least min_data_points")
	}
	return nil
}
