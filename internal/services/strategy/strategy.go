// Package strategy defines the contract trading strategies implement and
// the information they expose to the orchestrator.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/momotrade/momo/internal/domain"
)

// Info is a read-only view of a strategy's identity, configuration and
// accumulated performance.
type Info struct {
	Name        string
	Enabled     bool
	Config      map[string]float64
	Performance domain.PerformanceStats
}

// Strategy is implemented by every trading strategy. The orchestrator holds
// a collection of implementers and treats them uniformly.
//
// Observe feeds a market snapshot into the strategy's own bounded buffer;
// the strategy never shares buffers with the market data feed, so the data
// loop and decision passes cannot alias each other's state.
type Strategy interface {
	Name() string
	Enabled() bool
	Enable()
	Disable()

	Observe(snapshot domain.MarketSnapshot)
	Analyze(instrument string) domain.TradingSignal
	ShouldBuy(instrument string) bool
	ShouldSell(instrument string) bool

	CalculatePositionSize(instrument string, accountBalance decimal.Decimal) decimal.Decimal
	UpdatePerformance(pnl decimal.Decimal, isWin bool)

	UpdateConfig(params map[string]float64) error
	Info() Info
}
