package app

import (
	"log/slog"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/infra/storage"
	"market_sentry/internal/threshold"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Market Sentry...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Database.Path))

	return nil
}

// BuildRegistry seeds the threshold registry from the monitor configuration.
func (b *Bootstrap) BuildRegistry() *threshold.Registry {
	var entries []threshold.Entry
	add := func(group infra.AssetGroup, freq domain.Frequency) {
		for _, inst := range group.All() {
			entries = append(entries, threshold.Entry{Instrument: inst, Frequency: freq})
		}
	}
	add(b.Config.Monitor.Minute, domain.FrequencyMinute)
	add(b.Config.Monitor.Daily, domain.FrequencyDaily)
	add(b.Config.Monitor.Weekly, domain.FrequencyWeekly)

	slog.Info("✅ Threshold registry ready", slog.Int("entries", len(entries)))
	return threshold.NewRegistry(entries)
}
