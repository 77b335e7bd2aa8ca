package internal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/momotrade/momo/config"
	"github.com/momotrade/momo/internal/clients"
	"github.com/momotrade/momo/internal/domain"
	"github.com/momotrade/momo/internal/metrics"
	"github.com/momotrade/momo/internal/services/ledger"
	"github.com/momotrade/momo/internal/services/marketdata"
	"github.com/momotrade/momo/internal/services/strategy"
	"github.com/momotrade/momo/pkg/retrier"
)

const (
	// decisions execute only above this confidence
	executionConfidenceFloor = 0.6

	dataFailureDelay     = 10 * time.Second
	decisionFailureDelay = 30 * time.Second

	warmupTimeframe = "1m"
	stopTimeout     = 10 * time.Second
)

// Exchange is the slice of the exchange client the bot needs. Result
// structs carry the application-level envelope; callers branch on OK().
type Exchange interface {
	GetTicker(ctx context.Context, instrument string) (*clients.TickerResult, error)
	GetCandlesticks(ctx context.Context, instrument, timeframe string, count int) (*clients.CandlestickResult, error)
	GetBalance(ctx context.Context) (*clients.BalanceResult, error)
	CreateOrder(ctx context.Context, order clients.OrderRequest) (*clients.OrderResult, error)
	Close()
}

var _ Exchange = (*clients.CryptoComClient)(nil)

// Status is the summary exposed to the admin layer.
type Status struct {
	Running          bool
	TotalTrades      int
	WinningTrades    int
	WinRate          float64
	TotalPnL         decimal.Decimal
	OpenPositions    int
	ActiveStrategies []string
}

// PositionStatus is an open position together with its unrealized PnL at
// the latest known price.
type PositionStatus struct {
	domain.Position
	UnrealizedPnL decimal.Decimal
}

// TradingBot wires market data to strategies to order execution. It runs
// two background loops: the data loop refreshes snapshots, the decision
// loop turns signals into orders and ledger updates.
type TradingBot struct {
	cfg        config.Config
	client     Exchange
	feed       *marketdata.Feed
	strategies []strategy.Strategy
	ledger     *ledger.Ledger
	retry      *retrier.Retrier
	log        *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTradingBot creates a bot. The strategies share the bot's lifecycle but
// keep their own snapshot buffers.
func NewTradingBot(cfg config.Config, client Exchange, strategies []strategy.Strategy, log *zap.Logger) (*TradingBot, error) {
	if client == nil {
		return nil, errors.New("exchange client is required")
	}
	if len(strategies) == 0 {
		return nil, errors.New("at least one strategy is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &TradingBot{
		cfg:        cfg,
		client:     client,
		feed:       marketdata.NewFeed(cfg.Strategy.MaxLookback),
		strategies: strategies,
		ledger:     ledger.New(log),
		retry:      retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Second)),
		log:        log,
	}, nil
}

// Start validates the configuration, backfills price history and launches
// the data and decision loops. Starting a running bot is a no-op with a
// warning.
func (b *TradingBot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.log.Warn("bot already running, start ignored")
		return nil
	}
	if err := b.cfg.Validate(); err != nil {
		return errors.Wrap(err, "refusing to start")
	}

	b.warmup(ctx)

	b.running = true
	b.stopCh = make(chan struct{})
	b.wg.Add(2)
	go b.dataLoop(ctx)
	go b.decisionLoop(ctx)

	b.log.Info("bot started",
		zap.Strings("instruments", b.cfg.Trading.Instruments),
		zap.Bool("sandbox", b.cfg.Exchange.Sandbox))
	return nil
}

// Stop signals both loops, waits for them with a bounded timeout and
// releases the exchange connection. Stopping a stopped bot is a no-op with
// a warning.
func (b *TradingBot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		b.log.Warn("bot not running, stop ignored")
		return
	}
	b.running = false
	close(b.stopCh)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		b.log.Warn("loops did not stop within timeout")
	}

	b.client.Close()
	b.log.Info("bot stopped")
}

// warmup backfills each instrument's history from candlesticks so the
// strategies have enough data for their first decisions. Failures are
// logged and skipped; live ticks will fill the gap eventually.
func (b *TradingBot) warmup(ctx context.Context) {
	for _, instrument := range b.cfg.Trading.Instruments {
		res, err := retrier.DoWithData(b.retry, ctx, func(ctx context.Context) (*clients.CandlestickResult, error) {
			return b.client.GetCandlesticks(ctx, instrument, warmupTimeframe, b.cfg.Strategy.MaxLookback)
		})
		if err != nil {
			b.log.Warn("warmup fetch failed", zap.String("instrument", instrument), zap.Error(err))
			continue
		}
		if !res.OK() {
			b.log.Warn("warmup fetch rejected",
				zap.String("instrument", instrument),
				zap.Int64("code", res.Code),
				zap.String("message", res.Message))
			continue
		}

		for _, candle := range res.Candles {
			candle.Instrument = instrument
			b.observe(candle)
		}
		b.log.Info("warmup complete",
			zap.String("instrument", instrument),
			zap.Int("candles", len(res.Candles)))
	}
}

func (b *TradingBot) observe(snapshot domain.MarketSnapshot) {
	b.feed.Append(snapshot)
	for _, st := range b.strategies {
		st.Observe(snapshot)
	}
}

func (b *TradingBot) dataLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		delay := b.cfg.Trading.DataInterval
		if err := b.dataPass(ctx); err != nil {
			b.log.Error("data pass failed", zap.Error(err))
			delay = dataFailureDelay
		}

		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// dataPass fetches one snapshot per instrument. Individual failures are
// logged and skipped; the pass only counts as failed when every instrument
// failed.
func (b *TradingBot) dataPass(ctx context.Context) error {
	failed := 0
	for _, instrument := range b.cfg.Trading.Instruments {
		res, err := b.client.GetTicker(ctx, instrument)
		if err != nil {
			b.log.Warn("ticker fetch failed", zap.String("instrument", instrument), zap.Error(err))
			metrics.DataFetchErrors.WithLabelValues(instrument).Inc()
			failed++
			continue
		}
		if !res.OK() || res.Snapshot == nil {
			b.log.Warn("ticker fetch rejected",
				zap.String("instrument", instrument),
				zap.Int64("code", res.Code),
				zap.String("message", res.Message))
			metrics.DataFetchErrors.WithLabelValues(instrument).Inc()
			failed++
			continue
		}

		b.observe(*res.Snapshot)
	}

	if failed == len(b.cfg.Trading.Instruments) {
		return errors.New("all instrument fetches failed")
	}
	return nil
}

func (b *TradingBot) decisionLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		delay := b.cfg.Trading.DecisionInterval
		if err := b.decisionPass(ctx); err != nil {
			b.log.Error("decision pass failed", zap.Error(err))
			delay = decisionFailureDelay
		}

		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// decisionPass analyzes every instrument with buffered data against every
// enabled strategy and executes qualifying signals.
func (b *TradingBot) decisionPass(ctx context.Context) error {
	var passErr error
	for _, instrument := range b.feed.Instruments() {
		for _, st := range b.strategies {
			if !st.Enabled() {
				continue
			}

			var err error
			switch hasPos := b.ledger.HasPosition(instrument); {
			case !hasPos && st.ShouldBuy(instrument):
				if sig := st.Analyze(instrument); sig.Type == domain.SignalBuy && sig.Confidence > executionConfidenceFloor {
					err = b.openPosition(ctx, st, instrument, sig)
				}
			case hasPos && st.ShouldSell(instrument):
				if sig := st.Analyze(instrument); sig.Type == domain.SignalSell && sig.Confidence > executionConfidenceFloor {
					err = b.closePosition(ctx, st, instrument, sig)
				}
			}
			if err != nil {
				b.log.Error("signal execution failed",
					zap.String("instrument", instrument),
					zap.String("strategy", st.Name()),
					zap.Error(err))
				passErr = err
			}
		}
	}

	metrics.DecisionPasses.Inc()
	return passErr
}

func (b *TradingBot) openPosition(ctx context.Context, st strategy.Strategy, instrument string, sig domain.TradingSignal) error {
	if b.ledger.OpenCount() >= b.cfg.Trading.MaxOpenPositions {
		b.log.Info("max open positions reached, skipping buy",
			zap.String("instrument", instrument))
		return nil
	}

	balance, err := b.client.GetBalance(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch balance")
	}
	if !balance.OK() {
		return errors.Errorf("balance request rejected with code %d: %s", balance.Code, balance.Message)
	}

	quantity := st.CalculatePositionSize(instrument, balance.Available)
	if !quantity.IsPositive() {
		b.log.Info("position size is zero, skipping buy", zap.String("instrument", instrument))
		return nil
	}

	notional := quantity.Mul(sig.Price)
	if notional.LessThan(b.cfg.Trading.MinTradeAmount) {
		b.log.Info("notional below minimum trade amount, skipping buy",
			zap.String("instrument", instrument),
			zap.String("notional", notional.String()),
			zap.String("min", b.cfg.Trading.MinTradeAmount.String()))
		return nil
	}
	if notional.GreaterThan(b.cfg.Trading.MaxTradeAmount) && sig.Price.IsPositive() {
		quantity = b.cfg.Trading.MaxTradeAmount.Div(sig.Price)
	}

	if err := b.execute(ctx, instrument, clients.OrderSideBuy, quantity); err != nil {
		return err
	}

	if _, err := b.ledger.Open(instrument, domain.PositionSideLong, quantity, sig.Price, st.Name()); err != nil {
		return errors.Wrap(err, "record position")
	}

	metrics.OrdersSubmitted.WithLabelValues(st.Name(), string(clients.OrderSideBuy)).Inc()
	metrics.PositionsOpen.Set(float64(b.ledger.OpenCount()))

	b.log.Info("buy executed",
		zap.String("instrument", instrument),
		zap.String("strategy", st.Name()),
		zap.Float64("confidence", sig.Confidence),
		zap.String("quantity", quantity.String()),
		zap.String("price", sig.Price.String()))
	return nil
}

func (b *TradingBot) closePosition(ctx context.Context, st strategy.Strategy, instrument string, sig domain.TradingSignal) error {
	pos, ok := b.ledger.Position(instrument)
	if !ok {
		return nil
	}

	if err := b.execute(ctx, instrument, clients.OrderSideSell, pos.Quantity); err != nil {
		return err
	}

	_, pnl, err := b.ledger.Close(instrument, sig.Price)
	if err != nil {
		return errors.Wrap(err, "close position")
	}
	st.UpdatePerformance(pnl, pnl.IsPositive())

	metrics.OrdersSubmitted.WithLabelValues(st.Name(), string(clients.OrderSideSell)).Inc()
	metrics.PositionsOpen.Set(float64(b.ledger.OpenCount()))
	metrics.RealizedPnL.Set(b.ledger.Performance().TotalPnL.InexactFloat64())

	b.log.Info("sell executed",
		zap.String("instrument", instrument),
		zap.String("strategy", st.Name()),
		zap.Float64("confidence", sig.Confidence),
		zap.String("pnl", pnl.String()))
	return nil
}

// execute submits a market order, or only logs it in sandbox mode.
func (b *TradingBot) execute(ctx context.Context, instrument string, side clients.OrderSide, quantity decimal.Decimal) error {
	if b.cfg.Exchange.Sandbox {
		b.log.Info("sandbox mode, order simulated",
			zap.String("instrument", instrument),
			zap.String("side", string(side)),
			zap.String("quantity", quantity.String()))
		return nil
	}

	res, err := b.client.CreateOrder(ctx, clients.OrderRequest{
		Instrument: instrument,
		Side:       side,
		Type:       clients.OrderTypeMarket,
		Quantity:   quantity,
	})
	if err != nil {
		return errors.Wrap(err, "submit order")
	}
	if !res.OK() {
		return errors.Errorf("order rejected with code %d: %s", res.Code, res.Message)
	}
	return nil
}

// Status reports the bot's run state and aggregate performance.
func (b *TradingBot) Status() Status {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()

	perf := b.ledger.Performance()
	active := make([]string, 0, len(b.strategies))
	for _, st := range b.strategies {
		if st.Enabled() {
			active = append(active, st.Name())
		}
	}

	return Status{
		Running:          running,
		TotalTrades:      perf.TotalTrades,
		WinningTrades:    perf.WinningTrades,
		WinRate:          perf.WinRate,
		TotalPnL:         perf.TotalPnL,
		OpenPositions:    b.ledger.OpenCount(),
		ActiveStrategies: active,
	}
}

// Positions returns the open positions with unrealized PnL computed at the
// latest buffered price.
func (b *TradingBot) Positions() map[string]PositionStatus {
	out := make(map[string]PositionStatus)
	for instrument, pos := range b.ledger.Positions() {
		status := PositionStatus{Position: pos}
		if price, ok := b.feed.LastPrice(instrument); ok {
			status.UnrealizedPnL = pos.PnL(price)
		}
		out[instrument] = status
	}
	return out
}

// StrategiesInfo lists every strategy's identity, config and performance.
func (b *TradingBot) StrategiesInfo() []strategy.Info {
	out := make([]strategy.Info, 0, len(b.strategies))
	for _, st := range b.strategies {
		out = append(out, st.Info())
	}
	return out
}

// History returns the trade history, oldest first.
func (b *TradingBot) History() []domain.TradeHistoryEntry {
	return b.ledger.History()
}

// EnableStrategy enables the named strategy.
func (b *TradingBot) EnableStrategy(name string) error {
	st, err := b.findStrategy(name)
	if err != nil {
		return err
	}
	st.Enable()
	b.log.Info("strategy enabled", zap.String("strategy", name))
	return nil
}

// DisableStrategy disables the named strategy.
func (b *TradingBot) DisableStrategy(name string) error {
	st, err := b.findStrategy(name)
	if err != nil {
		return err
	}
	st.Disable()
	b.log.Info("strategy disabled", zap.String("strategy", name))
	return nil
}

// UpdateStrategyConfig applies a partial parameter update to the named
// strategy.
func (b *TradingBot) UpdateStrategyConfig(name string, params map[string]float64) error {
	st, err := b.findStrategy(name)
	if err != nil {
		return err
	}
	return st.UpdateConfig(params)
}

func (b *TradingBot) findStrategy(name string) (strategy.Strategy, error) {
	for _, st := range b.strategies {
		if st.Name() == name {
			return st, nil
		}
	}
	return nil, errors.Errorf("unknown strategy %q", name)
}
