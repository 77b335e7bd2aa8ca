// Command momo runs the momentum trading bot against the Crypto.com
// Exchange. It samples instrument prices, turns oscillator crossovers into
// trading signals and executes (or simulates) the resulting orders.
//
// Usage:
//
//	momo --config config.yml
//
// Credentials may be supplied in the config file or via the API_KEY,
// SECRET_KEY and SANDBOX_MODE environment variables (a .env file is
// honored). Environment variables win.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/momotrade/momo/config"
	"github.com/momotrade/momo/internal"
	"github.com/momotrade/momo/internal/clients"
	"github.com/momotrade/momo/internal/logger"
	"github.com/momotrade/momo/internal/services/strategy"
	"github.com/momotrade/momo/internal/services/strategy/oscillator"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to yaml config")
	flag.Parse()

	// missing .env is fine, variables may come from the environment
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	client := clients.NewCryptoComClient(
		cfg.Exchange.APIKey,
		cfg.Exchange.SecretKey,
		cfg.Exchange.Sandbox,
		clients.WithMinRequestInterval(cfg.Exchange.MinRequestInterval),
		clients.WithLogger(zlog.Named("exchange")),
	)

	osc, err := oscillator.New(oscillator.Config{
		Period:              cfg.Strategy.Period,
		OversoldThreshold:   cfg.Strategy.OversoldThreshold,
		OverboughtThreshold: cfg.Strategy.OverboughtThreshold,
		MinConfidence:       cfg.Strategy.MinConfidence,
		RiskPercentage:      cfg.Strategy.RiskPercentage,
		StopLossPercentage:  cfg.Strategy.StopLossPercentage,
		MaxPositionSizePct:  cfg.Strategy.MaxPositionSizePct,
		MinDataPoints:       cfg.Strategy.MinDataPoints,
		MaxLookback:         cfg.Strategy.MaxLookback,
	}, zlog.Named("oscillator"))
	if err != nil {
		zlog.Fatal("failed to create strategy", zap.Error(err))
	}

	bot, err := internal.NewTradingBot(*cfg, client, []strategy.Strategy{osc}, zlog)
	if err != nil {
		zlog.Fatal("failed to create bot", zap.Error(err))
	}

	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, nil); err != nil {
				zlog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bot.Start(ctx); err != nil {
		zlog.Fatal("failed to start bot", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zlog.Info("shutdown signal received")
	bot.Stop()
}
