package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeHistoryEntry is an immutable record of one executed open or close,
// kept for reporting only.
type TradeHistoryEntry struct {
	Time       time.Time
	Instrument string
	Side       PositionSide
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Notional   decimal.Decimal
	Strategy   string
	PnL        decimal.Decimal
}
