// Package oscillator implements an RSI crossover strategy: it watches for
// the oscillator leaving the oversold/overbought zone and converts the
// crossover into a BUY/SELL signal with a heuristic confidence score.
package oscillator

import (
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/momotrade/momo/internal/domain"
	"github.com/momotrade/momo/internal/services/marketdata"
	"github.com/momotrade/momo/internal/services/strategy"
	"github.com/momotrade/momo/pkg/indicators"
)

const (
	trendFastPeriod = 10
	trendSlowPeriod = 20
	momentumPeriod  = 5
	volumeWindow    = 5

	// convenience gates require this floor regardless of MinConfidence
	decisionFloor = 0.5
)

// Strategy analyzes per-instrument price history kept in its own bounded
// buffer. The buffer is fed through Observe and never shared with the
// market data feed, so concurrent data and decision passes cannot alias.
type Strategy struct {
	mu      sync.RWMutex
	name    string
	enabled bool
	cfg     Config
	perf    domain.PerformanceStats

	feed *marketdata.Feed
	log  *zap.Logger
}

var _ strategy.Strategy = (*Strategy)(nil)

// New creates an oscillator strategy with the given config. The snapshot
// buffer capacity is fixed at cfg.MaxLookback for the strategy's lifetime.
func New(cfg Config, log *zap.Logger) (*Strategy, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid oscillator config")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Strategy{
		name:    "rsi_oscillator",
		enabled: true,
		cfg:     cfg,
		feed:    marketdata.NewFeed(cfg.MaxLookback),
		log:     log,
	}, nil
}

func (s *Strategy) Name() string { return s.name }

func (s *Strategy) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *Strategy) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

func (s *Strategy) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Observe records a snapshot into the strategy's own buffer.
func (s *Strategy) Observe(snapshot domain.MarketSnapshot) {
	s.feed.Append(snapshot)
}

// Analyze inspects the buffered history for an instrument and emits a
// trading signal. It never returns an error: states like "not enough
// history" and "no crossover" come back as HOLD signals with a reason code.
func (s *Strategy) Analyze(instrument string) domain.TradingSignal {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	history := s.feed.Snapshots(instrument)
	lastPrice := decimal.Decimal{}
	if len(history) > 0 {
		lastPrice = history[len(history)-1].Close
	}

	if len(history) < cfg.MinDataPoints {
		return domain.Hold(lastPrice, domain.ReasonInsufficientData,
			fmt.Sprintf("insufficient data: have %d, need %d", len(history), cfg.MinDataPoints))
	}

	closes := make([]float64, len(history))
	volumes := make([]float64, len(history))
	for i, snap := range history {
		closes[i] = snap.Close.InexactFloat64()
		volumes[i] = snap.Volume.InexactFloat64()
	}

	rsi := indicators.RSI(closes, cfg.Period)
	tail := rsi.DefinedTail(2)
	if len(tail) < 2 {
		return domain.Hold(lastPrice, domain.ReasonInsufficientData,
			"insufficient data: oscillator not yet defined")
	}
	previous, current := tail[0], tail[1]

	var (
		sigType    domain.SignalType
		confidence float64
	)
	switch {
	case previous <= cfg.OversoldThreshold && current > cfg.OversoldThreshold:
		sigType = domain.SignalBuy
		zone := math.Max(0, (cfg.OversoldThreshold-math.Min(previous, 20))/20)
		reversal := math.Min(1, (current-previous)/10)
		confidence = clamp(0.1, 0.9, 0.7*zone+0.3*reversal)

	case previous >= cfg.OverboughtThreshold && current < cfg.OverboughtThreshold:
		sigType = domain.SignalSell
		zone := math.Max(0, (math.Max(previous, 80)-cfg.OverboughtThreshold)/20)
		reversal := math.Min(1, (previous-current)/10)
		confidence = clamp(0.1, 0.9, 0.7*zone+0.3*reversal)

	default:
		return domain.Hold(lastPrice, domain.ReasonNoSignal, "no crossover")
	}

	confidence = s.confirmVolume(confidence, volumes)
	confidence = s.confirmTrend(confidence, closes, sigType)
	confidence = s.confirmMomentum(confidence, closes, sigType)

	if confidence < cfg.MinConfidence {
		return domain.Hold(lastPrice, domain.ReasonBelowConfidence,
			fmt.Sprintf("confidence %.2f below minimum %.2f", confidence, cfg.MinConfidence))
	}

	s.log.Debug("oscillator crossover",
		zap.String("instrument", instrument),
		zap.String("signal", string(sigType)),
		zap.Float64("confidence", confidence),
		zap.Float64("current", current),
		zap.Float64("previous", previous))

	return domain.TradingSignal{
		Type:       sigType,
		Confidence: confidence,
		Price:      lastPrice,
		Reason:     fmt.Sprintf("oscillator crossover %.2f -> %.2f", previous, current),
		Code:       domain.ReasonCrossover,
		Metadata: map[string]float64{
			"current":              current,
			"previous":             previous,
			"oversold_threshold":   cfg.OversoldThreshold,
			"overbought_threshold": cfg.OverboughtThreshold,
			"period":               float64(cfg.Period),
		},
	}
}

// confirmVolume boosts confidence when the latest volume runs hot against
// the mean of the prior window, and dampens it when volume dries up.
func (s *Strategy) confirmVolume(confidence float64, volumes []float64) float64 {
	if len(volumes) < volumeWindow+1 {
		return confidence
	}
	var sum float64
	for _, v := range volumes[len(volumes)-volumeWindow-1 : len(volumes)-1] {
		sum += v
	}
	mean := sum / volumeWindow
	if mean <= 0 {
		return confidence
	}

	last := volumes[len(volumes)-1]
	switch {
	case last > 1.2*mean:
		confidence *= 1.1
	case last < 0.8*mean:
		confidence *= 0.9
	}
	return math.Min(confidence, 1.0)
}

// confirmTrend boosts confidence when the fast/slow moving average
// alignment agrees with the signal direction.
func (s *Strategy) confirmTrend(confidence float64, closes []float64, sigType domain.SignalType) float64 {
	fast, okFast := indicators.SMA(closes, trendFastPeriod).Last()
	slow, okSlow := indicators.SMA(closes, trendSlowPeriod).Last()
	if !okFast || !okSlow {
		return confidence
	}

	if (sigType == domain.SignalBuy && fast > slow) ||
		(sigType == domain.SignalSell && fast < slow) {
		confidence *= 1.05
	}
	return math.Min(confidence, 1.0)
}

// confirmMomentum boosts confidence when the short-horizon percentage price
// change agrees with the signal direction.
func (s *Strategy) confirmMomentum(confidence float64, closes []float64, sigType domain.SignalType) float64 {
	if len(closes) < momentumPeriod+1 {
		return confidence
	}
	base := closes[len(closes)-momentumPeriod-1]
	if base == 0 {
		return confidence
	}
	change := (closes[len(closes)-1] - base) / base

	if (sigType == domain.SignalBuy && change > 0) ||
		(sigType == domain.SignalSell && change < 0) {
		confidence *= 1.03
	}
	return math.Min(confidence, 1.0)
}

// ShouldBuy reports whether the strategy currently recommends opening a
// long: enabled, enough history, and a BUY signal above the decision floor.
func (s *Strategy) ShouldBuy(instrument string) bool {
	return s.shouldTrade(instrument, domain.SignalBuy)
}

// ShouldSell is the symmetric gate for closing/shorting.
func (s *Strategy) ShouldSell(instrument string) bool {
	return s.shouldTrade(instrument, domain.SignalSell)
}

func (s *Strategy) shouldTrade(instrument string, want domain.SignalType) bool {
	s.mu.RLock()
	enabled := s.enabled
	minPoints := s.cfg.MinDataPoints
	s.mu.RUnlock()

	if !enabled || s.feed.Len(instrument) < minPoints {
		return false
	}
	sig := s.Analyze(instrument)
	return sig.Type == want && sig.Confidence > decisionFloor
}

// CalculatePositionSize converts the account balance into an order quantity:
// the risk budget divided by the per-unit stop-loss distance, capped so the
// position notional never exceeds the configured share of the balance.
// Returns zero when no price is known for the instrument.
func (s *Strategy) CalculatePositionSize(instrument string, accountBalance decimal.Decimal) decimal.Decimal {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	price, ok := s.feed.LastPrice(instrument)
	if !ok || !price.IsPositive() || !accountBalance.IsPositive() {
		return decimal.Zero
	}

	hundred := decimal.NewFromInt(100)
	riskAmount := accountBalance.Mul(decimal.NewFromFloat(cfg.RiskPercentage)).Div(hundred)
	stopDistance := price.Mul(decimal.NewFromFloat(cfg.StopLossPercentage)).Div(hundred)
	if !stopDistance.IsPositive() {
		return decimal.Zero
	}

	size := riskAmount.Div(stopDistance)
	maxSize := accountBalance.Mul(decimal.NewFromFloat(cfg.MaxPositionSizePct)).Div(hundred).Div(price)
	if size.GreaterThan(maxSize) {
		size = maxSize
	}
	if size.IsNegative() {
		return decimal.Zero
	}
	return size
}

// UpdatePerformance folds a realized trade outcome into the strategy's own
// performance tracker.
func (s *Strategy) UpdatePerformance(pnl decimal.Decimal, isWin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf.RecordTrade(pnl, isWin)
}

// UpdateConfig applies a partial parameter update. The merged config is
// validated as a whole before it replaces the current one.
func (s *Strategy) UpdateConfig(params map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := s.cfg.merge(params)
	if err != nil {
		return errors.Wrap(err, "update oscillator config")
	}
	s.cfg = merged
	s.log.Info("strategy config updated", zap.String("strategy", s.name))
	return nil
}

// Info returns a read-only view of the strategy state.
func (s *Strategy) Info() strategy.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strategy.Info{
		Name:        s.name,
		Enabled:     s.enabled,
		Config:      s.cfg.toMap(),
		Performance: s.perf,
	}
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
