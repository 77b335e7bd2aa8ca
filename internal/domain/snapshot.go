package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is a single observation of an instrument's market state.
// Snapshots are immutable once created; feeds append them to bounded
// per-instrument sequences.
type MarketSnapshot struct {
	Instrument string
	Timestamp  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Bid        decimal.NullDecimal
	Ask        decimal.NullDecimal
}
