package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PositionSide represents the direction of a trading position.
type PositionSide string

const (
	// PositionSideLong represents a long position (buy to open).
	PositionSideLong PositionSide = "BUY"
	// PositionSideShort represents a short position (sell to open).
	PositionSideShort PositionSide = "SELL"
)

// Position represents the single open position an instrument may have.
// It is created on a successful opening order and destroyed on close.
type Position struct {
	Instrument string
	Side       PositionSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	Strategy   string
	OpenedAt   time.Time
}

// NewPosition constructs a position opened by a strategy.
func NewPosition(instrument string, side PositionSide, quantity, entryPrice decimal.Decimal, strategy string, openedAt time.Time) (*Position, error) {
	if instrument == "" {
		return nil, errors.New("instrument must not be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position quantity must be greater than zero")
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("entry price must be greater than zero")
	}

	return &Position{
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		Strategy:   strategy,
		OpenedAt:   openedAt,
	}, nil
}

// PnL calculates profit and loss against the given market price.
//
// For long positions: PnL = (currentPrice - entryPrice) * quantity.
// For short positions: PnL = (entryPrice - currentPrice) * quantity.
func (p *Position) PnL(currentPrice decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if p.Side == PositionSideShort {
		return p.EntryPrice.Sub(currentPrice).Mul(p.Quantity)
	}
	return currentPrice.Sub(p.EntryPrice).Mul(p.Quantity)
}

// Notional returns the position value at its entry price.
func (p *Position) Notional() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Quantity.Mul(p.EntryPrice)
}
