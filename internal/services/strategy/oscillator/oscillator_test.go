package oscillator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momotrade/momo/internal/domain"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDataPoints = 20
	return cfg
}

func newTestStrategy(t *testing.T, cfg Config) *Strategy {
	t.Helper()
	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func snapshot(instrument string, close, volume float64) domain.MarketSnapshot {
	price := decimal.NewFromFloat(close)
	return domain.MarketSnapshot{
		Instrument: instrument,
		Timestamp:  time.Now(),
		Open:       price,
		High:       price,
		Low:        price,
		Close:      price,
		Volume:     decimal.NewFromFloat(volume),
	}
}

func feedSeries(s *Strategy, instrument string, closes []float64) {
	for _, c := range closes {
		s.Observe(snapshot(instrument, c, 10))
	}
}

// decline by 1 per step for 59 points, then rebound sharply. The monotone
// decline pins the oscillator at 0; the rebound lifts it well past the
// oversold threshold in a single step.
func dipAndCrossSeries() []float64 {
	closes := make([]float64, 0, 60)
	for p := 100.0; p >= 42; p-- {
		closes = append(closes, p)
	}
	return append(closes, 72)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())

	for i := 0; i < 10; i++ {
		s.Observe(snapshot("BTCUSD-PERP", 100+float64(i), 10))
	}

	sig := s.Analyze("BTCUSD-PERP")
	require.Equal(t, domain.SignalHold, sig.Type)
	require.Equal(t, domain.ReasonInsufficientData, sig.Code)
	require.Contains(t, sig.Reason, "insufficient data")
	require.Zero(t, sig.Confidence)
}

func TestAnalyzeExactlyOneBuyOnOversoldCross(t *testing.T) {
	s := newTestStrategy(t, testConfig())

	var buys []domain.TradingSignal
	for i, c := range dipAndCrossSeries() {
		s.Observe(snapshot("BTCUSD-PERP", c, 10))
		if i+1 < testConfig().MinDataPoints {
			continue
		}
		sig := s.Analyze("BTCUSD-PERP")
		if sig.Type == domain.SignalBuy {
			buys = append(buys, sig)
		}
	}

	require.Len(t, buys, 1, "the oversold cross fires exactly once")
	sig := buys[0]
	require.Greater(t, sig.Confidence, 0.0)
	require.LessOrEqual(t, sig.Confidence, 1.0)
	require.Equal(t, domain.ReasonCrossover, sig.Code)
	require.True(t, sig.Price.Equal(decimal.NewFromInt(72)))
	require.Equal(t, 30.0, sig.Metadata["oversold_threshold"])
	require.Greater(t, sig.Metadata["current"], 30.0)
	require.LessOrEqual(t, sig.Metadata["previous"], 30.0)
}

func TestAnalyzeSellOnOverboughtCross(t *testing.T) {
	s := newTestStrategy(t, testConfig())

	closes := make([]float64, 0, 50)
	for p := 52.0; p <= 100; p++ {
		closes = append(closes, p)
	}
	closes = append(closes, 70)
	feedSeries(s, "BTCUSD-PERP", closes)

	sig := s.Analyze("BTCUSD-PERP")
	require.Equal(t, domain.SignalSell, sig.Type)
	require.Greater(t, sig.Confidence, 0.5)
	require.Equal(t, domain.ReasonCrossover, sig.Code)
}

func TestAnalyzeHoldWithoutCrossover(t *testing.T) {
	s := newTestStrategy(t, testConfig())

	// monotone decline keeps the oscillator inside the oversold zone
	closes := make([]float64, 0, 40)
	for p := 100.0; p > 60; p-- {
		closes = append(closes, p)
	}
	feedSeries(s, "BTCUSD-PERP", closes)

	sig := s.Analyze("BTCUSD-PERP")
	require.Equal(t, domain.SignalHold, sig.Type)
	require.Equal(t, domain.ReasonNoSignal, sig.Code)
}

func TestAnalyzeMinConfidenceForcesHold(t *testing.T) {
	cfg := testConfig()
	cfg.MinConfidence = 0.99
	s := newTestStrategy(t, cfg)
	feedSeries(s, "BTCUSD-PERP", dipAndCrossSeries())

	sig := s.Analyze("BTCUSD-PERP")
	require.Equal(t, domain.SignalHold, sig.Type)
	require.Equal(t, domain.ReasonBelowConfidence, sig.Code)
	require.Contains(t, sig.Reason, "below minimum")
}

func TestVolumeConfirmation(t *testing.T) {
	s := newTestStrategy(t, testConfig())

	base := []float64{10, 10, 10, 10, 10}

	hot := append(append([]float64{}, base...), 20)
	require.InDelta(t, 0.55, s.confirmVolume(0.5, hot), 1e-9, "hot volume boosts confidence")

	cold := append(append([]float64{}, base...), 5)
	require.InDelta(t, 0.45, s.confirmVolume(0.5, cold), 1e-9, "thin volume dampens confidence")

	steady := append(append([]float64{}, base...), 10)
	require.InDelta(t, 0.5, s.confirmVolume(0.5, steady), 1e-9)

	require.InDelta(t, 1.0, s.confirmVolume(0.95, hot), 1e-9, "confidence is capped at 1")
}

func TestShouldBuy(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	feedSeries(s, "BTCUSD-PERP", dipAndCrossSeries())

	require.True(t, s.ShouldBuy("BTCUSD-PERP"))
	require.False(t, s.ShouldSell("BTCUSD-PERP"))

	s.Disable()
	require.False(t, s.ShouldBuy("BTCUSD-PERP"), "disabled strategy never trades")

	s.Enable()
	require.True(t, s.ShouldBuy("BTCUSD-PERP"))
}

func TestShouldBuyFalseOnShortHistory(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())
	for i := 0; i < 10; i++ {
		s.Observe(snapshot("BTCUSD-PERP", 100, 10))
	}
	require.False(t, s.ShouldBuy("BTCUSD-PERP"))
}

func TestCalculatePositionSize(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	s.Observe(snapshot("BTCUSD-PERP", 100, 10))

	balance := decimal.NewFromInt(10000)

	// risk budget 200, stop distance 2 per unit -> 100 units, capped at
	// 10% of balance / price = 10 units
	size := s.CalculatePositionSize("BTCUSD-PERP", balance)
	require.True(t, size.Equal(decimal.NewFromInt(10)), "got %s", size)

	notionalCap := balance.Mul(decimal.NewFromFloat(0.10))
	require.True(t, size.Mul(decimal.NewFromInt(100)).LessThanOrEqual(notionalCap))
}

func TestCalculatePositionSizeUnknownPrice(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	require.True(t, s.CalculatePositionSize("ETHUSD-PERP", decimal.NewFromInt(10000)).IsZero())
}

func TestCalculatePositionSizeZeroBalance(t *testing.T) {
	s := newTestStrategy(t, testConfig())
	s.Observe(snapshot("BTCUSD-PERP", 100, 10))
	require.True(t, s.CalculatePositionSize("BTCUSD-PERP", decimal.Zero).IsZero())
}

func TestUpdateConfig(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())

	require.NoError(t, s.UpdateConfig(map[string]float64{
		"period":         10,
		"min_confidence": 0.7,
	}))

	info := s.Info()
	require.Equal(t, 10.0, info.Config["period"])
	require.Equal(t, 0.7, info.Config["min_confidence"])
	require.Equal(t, 30.0, info.Config["oversold_threshold"], "untouched parameters keep their values")
}

func TestUpdateConfigRejectsUnknownKey(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())
	require.Error(t, s.UpdateConfig(map[string]float64{"bogus": 1}))
}

func TestUpdateConfigRejectsMaxLookbackChange(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())
	require.Error(t, s.UpdateConfig(map[string]float64{"max_lookback": 500}))
}

func TestUpdateConfigRejectsInvalidMerge(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())

	err := s.UpdateConfig(map[string]float64{"oversold_threshold": 80})
	require.Error(t, err, "oversold above overbought is rejected")

	info := s.Info()
	require.Equal(t, 30.0, info.Config["oversold_threshold"], "failed update leaves config untouched")
}

func TestUpdatePerformance(t *testing.T) {
	s := newTestStrategy(t, DefaultConfig())

	s.UpdatePerformance(decimal.NewFromInt(10), true)
	s.UpdatePerformance(decimal.NewFromInt(-4), false)

	perf := s.Info().Performance
	require.Equal(t, 2, perf.TotalTrades)
	require.Equal(t, 1, perf.WinningTrades)
	require.Equal(t, 1, perf.LosingTrades)
	require.True(t, perf.TotalPnL.Equal(decimal.NewFromInt(6)))
	require.InDelta(t, 0.5, perf.WinRate, 1e-9)
	require.True(t, perf.AvgWin.Equal(decimal.NewFromInt(10)))
	require.True(t, perf.AvgLoss.Equal(decimal.NewFromInt(4)))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = 0
	_, err := New(cfg, nil)
	require.Error(t, err)
}
