package oscillator

import (
	"github.com/pkg/errors"
)

// Config holds the numeric parameters of the oscillator strategy.
// Percentage values are expressed as percents (2.0 means 2%).
type Config struct {
	Period              int
	OversoldThreshold   float64
	OverboughtThreshold float64
	MinConfidence       float64
	RiskPercentage      float64
	StopLossPercentage  float64
	MaxPositionSizePct  float64
	MinDataPoints       int
	MaxLookback         int
}

// DefaultConfig returns the stock parameters of the strategy.
func DefaultConfig() Config {
	return Config{
		Period:              14,
		OversoldThreshold:   30,
		OverboughtThreshold: 70,
		MinConfidence:       0.6,
		RiskPercentage:      2.0,
		StopLossPercentage:  2.0,
		MaxPositionSizePct:  10.0,
		MinDataPoints:       50,
		MaxLookback:         200,
	}
}

func (c Config) validate() error {
	if c.Period < 1 {
		return errors.New("period must be at least 1")
	}
	if c.OversoldThreshold <= 0 || c.OverboughtThreshold >= 100 || c.OversoldThreshold >= c.OverboughtThreshold {
		return errors.New("thresholds must satisfy 0 < oversold < overbought < 100")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("min confidence must be within [0,1]")
	}
	if c.RiskPercentage <= 0 || c.StopLossPercentage <= 0 || c.MaxPositionSizePct <= 0 {
		return errors.New("risk, stop-loss and max position size percentages must be positive")
	}
	if c.MinDataPoints < c.Period+1 {
		return errors.New("min data points must exceed the oscillator period")
	}
	if c.MaxLookback < c.MinDataPoints {
		return errors.New("max lookback must be at least min data points")
	}
	return nil
}

// toMap exposes the config for status reporting.
func (c Config) toMap() map[string]float64 {
	return map[string]float64{
		"period":                       float64(c.Period),
		"oversold_threshold":           c.OversoldThreshold,
		"overbought_threshold":         c.OverboughtThreshold,
		"min_confidence":               c.MinConfidence,
		"risk_percentage":              c.RiskPercentage,
		"stop_loss_percentage":         c.StopLossPercentage,
		"max_position_size_percentage": c.MaxPositionSizePct,
		"min_data_points":              float64(c.MinDataPoints),
		"max_lookback":                 float64(c.MaxLookback),
	}
}

// merge applies a partial update and returns the merged config. Unknown
// keys are rejected so a typo in an update cannot silently do nothing.
func (c Config) merge(params map[string]float64) (Config, error) {
	merged := c
	for key, value := range params {
		switch key {
		case "period":
			merged.Period = int(value)
		case "oversold_threshold":
			merged.OversoldThreshold = value
		case "overbought_threshold":
			merged.OverboughtThreshold = value
		case "min_confidence":
			merged.MinConfidence = value
		case "risk_percentage":
			merged.RiskPercentage = value
		case "stop_loss_percentage":
			merged.StopLossPercentage = value
		case "max_position_size_percentage":
			merged.MaxPositionSizePct = value
		case "min_data_points":
			merged.MinDataPoints = int(value)
		case "max_lookback":
			// the snapshot buffer is sized at construction
			return Config{}, errors.New("max_lookback cannot be changed at runtime")
		default:
			return Config{}, errors.Errorf("unknown config parameter %q", key)
		}
	}
	if err := merged.validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
