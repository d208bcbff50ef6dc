package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"market_sentry/internal/app"
	"market_sentry/internal/bus"
	"market_sentry/internal/consumer"
	"market_sentry/internal/domain"
	"market_sentry/internal/engine"
	"market_sentry/internal/infra"
	"market_sentry/internal/infra/binance"
	"market_sentry/internal/infra/itick"
	"market_sentry/internal/infra/wecom"
	"market_sentry/internal/orchestrator"
	"market_sentry/internal/producer"
)

// Daily and weekly bars move slowly; refetching them every minute would
// only burn API quota.
const historyInterval = 1 * time.Hour

func main() {
	// 1. Local overrides (.env is optional)
	_ = godotenv.Load()

	configPath := os.Getenv("MARKET_SENTRY_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Core pipeline: bus, thresholds, engine
	messageBus := bus.New()
	registry := bootstrap.BuildRegistry()
	volEngine := engine.New(registry, bootstrap.Storage, messageBus)

	drainTimeout := time.Duration(cfg.Producers.DrainTimeoutSec) * time.Second
	orch := orchestrator.New(messageBus, drainTimeout)
	orch.AddConsumer(volEngine)
	orch.AddConsumer(consumer.NewStorageConsumer(bootstrap.Storage))
	orch.AddConsumer(consumer.NewNotificationConsumer(wecom.NewNotifier(cfg.WeCom.WebhookURL)))

	// 5. Market-data collaborators and producers
	binanceClient := binance.NewClient(cfg.API.Binance.RestURL)
	itickClient := itick.NewClient(cfg.API.ITick.BaseURL, cfg.API.ITick.Token)

	interval := time.Duration(cfg.Producers.IntervalSec) * time.Second
	runAtStart := cfg.Producers.RunAtStart

	useStream := cfg.API.Binance.UseWebSocket && cfg.App.RunMode == infra.RunModeContinuous
	if !useStream && len(cfg.Monitor.Minute.Crypto) > 0 {
		p := producer.NewCryptoProducer(binanceClient, cfg.Monitor.Minute.Crypto)
		orch.AddRunner(producer.NewRunner(p, messageBus, interval, runAtStart))
	}

	if stocks := append(cfg.Monitor.Minute.Stocks, cfg.Monitor.Minute.Futures...); len(stocks) > 0 {
		p := producer.NewStockProducer(itickClient, stocks)
		orch.AddRunner(producer.NewRunner(p, messageBus, interval, runAtStart))
	}

	for _, freq := range []domain.Frequency{domain.FrequencyDaily, domain.FrequencyWeekly} {
		group := cfg.Group(freq)
		if len(group.Crypto) > 0 {
			p, err := producer.NewHistoryProducer(binanceClient, group.Crypto, freq)
			if err != nil {
				slog.Error("❌ Invalid history producer", slog.Any("error", err))
				os.Exit(1)
			}
			orch.AddRunner(producer.NewRunner(p, messageBus, historyInterval, true))
		}
		if insts := append(group.Stocks, group.Futures...); len(insts) > 0 {
			p, err := producer.NewHistoryProducer(itickClient, insts, freq)
			if err != nil {
				slog.Error("❌ Invalid history producer", slog.Any("error", err))
				os.Exit(1)
			}
			orch.AddRunner(producer.NewRunner(p, messageBus, historyInterval, true))
		}
	}

	// 6. Run
	if cfg.App.RunMode == infra.RunModeOnce {
		slog.Info("Running single monitoring pass")
		if err := orch.RunOnce(ctx); err != nil {
			slog.Error("❌ Monitoring pass failed", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("✨ Monitoring pass complete")
		return
	}

	if err := orch.Start(ctx); err != nil {
		slog.Error("❌ Failed to start orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	if useStream && len(cfg.Monitor.Minute.Crypto) > 0 {
		worker := binance.NewWorker(cfg.API.Binance.WSURL, cfg.Monitor.Minute.Crypto, messageBus)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to connect Binance stream", slog.Any("error", err))
		} else {
			defer worker.Disconnect()
			slog.InfoContext(ctx, "✅ BinanceStreamWorker started",
				slog.Int("symbols", len(cfg.Monitor.Minute.Crypto)))
		}
	}

	slog.InfoContext(ctx, "✨ Market Sentry fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	orch.Stop()
}
