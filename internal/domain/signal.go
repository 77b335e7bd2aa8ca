package domain

import "github.com/shopspring/decimal"

// SignalType represents the action a strategy recommends.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// ReasonCode classifies why a signal was (or was not) produced, so callers
// can tell "not enough history" apart from "analysis ran and found nothing".
type ReasonCode string

const (
	ReasonInsufficientData ReasonCode = "insufficient_data"
	ReasonNoSignal         ReasonCode = "no_signal"
	ReasonBelowConfidence  ReasonCode = "below_confidence"
	ReasonCrossover        ReasonCode = "crossover"
)

// TradingSignal is the ephemeral result of one analysis pass. It is produced
// fresh per Analyze call and never persisted.
type TradingSignal struct {
	Type       SignalType
	Confidence float64
	Price      decimal.Decimal
	Reason     string
	Code       ReasonCode
	Metadata   map[string]float64
}

// Hold builds a HOLD signal with zero confidence.
func Hold(price decimal.Decimal, code ReasonCode, reason string) TradingSignal {
	return TradingSignal{
		Type:       SignalHold,
		Confidence: 0,
		Price:      price,
		Reason:     reason,
		Code:       code,
	}
}
