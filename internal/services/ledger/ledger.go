// Package ledger tracks open positions, trade history and aggregate
// performance. At most one position may be open per instrument.
package ledger

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/momotrade/momo/internal/domain"
)

// ErrPositionExists is returned when opening an instrument that already has
// an open position.
var ErrPositionExists = errors.New("position already open for instrument")

// ErrPositionNotFound is returned when closing an instrument with no open
// position.
var ErrPositionNotFound = errors.New("no open position for instrument")

// Ledger exclusively owns the position map, trade history and performance
// counters. All access is mutex-guarded so the decision loop and status
// queries can run concurrently.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
	history   []domain.TradeHistoryEntry
	perf      domain.PerformanceStats

	log *zap.Logger
}

func New(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		positions: make(map[string]*domain.Position),
		log:       log,
	}
}

// Open records a new position for an instrument. It fails without side
// effects when a position is already open for that instrument.
func (l *Ledger) Open(instrument string, side domain.PositionSide, quantity, entryPrice decimal.Decimal, strategy string) (*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.positions[instrument]; exists {
		return nil, errors.Wrap(ErrPositionExists, instrument)
	}

	pos, err := domain.NewPosition(instrument, side, quantity, entryPrice, strategy, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "open position")
	}

	l.positions[instrument] = pos
	l.history = append(l.history, domain.TradeHistoryEntry{
		Time:       pos.OpenedAt,
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		Price:      entryPrice,
		Notional:   pos.Notional(),
		Strategy:   strategy,
	})

	l.log.Info("position opened",
		zap.String("instrument", instrument),
		zap.String("side", string(side)),
		zap.String("quantity", quantity.String()),
		zap.String("entry_price", entryPrice.String()))

	return pos, nil
}

// Close removes the instrument's open position, realizes PnL against the
// exit price and folds the outcome into the performance stats. The removed
// position and the realized PnL are returned.
func (l *Ledger) Close(instrument string, exitPrice decimal.Decimal) (*domain.Position, decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.positions[instrument]
	if !exists {
		return nil, decimal.Zero, errors.Wrap(ErrPositionNotFound, instrument)
	}

	pnl := pos.PnL(exitPrice)
	delete(l.positions, instrument)

	closeSide := domain.PositionSideShort
	if pos.Side == domain.PositionSideShort {
		closeSide = domain.PositionSideLong
	}
	l.history = append(l.history, domain.TradeHistoryEntry{
		Time:       time.Now(),
		Instrument: instrument,
		Side:       closeSide,
		Quantity:   pos.Quantity,
		Price:      exitPrice,
		Notional:   pos.Quantity.Mul(exitPrice),
		Strategy:   pos.Strategy,
		PnL:        pnl,
	})
	l.perf.RecordTrade(pnl, pnl.IsPositive())

	l.log.Info("position closed",
		zap.String("instrument", instrument),
		zap.String("exit_price", exitPrice.String()),
		zap.String("pnl", pnl.String()))

	return pos, pnl, nil
}

// Position returns the open position for an instrument, if any.
func (l *Ledger) Position(instrument string) (*domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[instrument]
	if !ok {
		return nil, false
	}
	cp := *pos
	return &cp, true
}

// HasPosition reports whether an instrument has an open position.
func (l *Ledger) HasPosition(instrument string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[instrument]
	return ok
}

// Positions returns copies of all open positions keyed by instrument.
func (l *Ledger) Positions() map[string]domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.Position, len(l.positions))
	for instrument, pos := range l.positions {
		out[instrument] = *pos
	}
	return out
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// History returns a copy of the trade history, oldest first.
func (l *Ledger) History() []domain.TradeHistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.TradeHistoryEntry, len(l.history))
	copy(out, l.history)
	return out
}

// Performance returns a snapshot of the aggregate stats.
func (l *Ledger) Performance() domain.PerformanceStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.perf
}
