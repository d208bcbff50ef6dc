package producer

import (
	"context"
	"log/slog"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/message"
)

// StockProducer emits minute-frequency ticks for configured equities and
// futures through a stock market-data fetcher.
type StockProducer struct {
	fetcher     domain.MarketFetcher
	instruments []domain.InstrumentSpec
	metrics     *infra.Metrics
}

// NewStockProducer creates a producer backed by a stock market fetcher.
func NewStockProducer(fetcher domain.MarketFetcher, instruments []domain.InstrumentSpec) *StockProducer {
	return &StockProducer{
		fetcher:     fetcher,
		instruments: instruments,
		metrics:     infra.GlobalMetrics,
	}
}

// Name implements Producer.
func (p *StockProducer) Name() string {
	return "StockProducer"
}

// Produce fetches the latest quote per instrument and wraps each into a
// price_data envelope.
func (p *StockProducer) Produce(ctx context.Context) ([]message.Envelope, error) {
	if len(p.instruments) == 0 {
		return nil, nil
	}

	ticks, err := p.fetcher.FetchRealtime(ctx, p.instruments)
	if err != nil {
		p.metrics.RecordFetch(false)
		return nil, err
	}
	p.metrics.RecordFetch(true)

	envs := make([]message.Envelope, 0, len(ticks))
	for _, tick := range ticks {
		env, err := message.NewPriceData(p.Name(), tick)
		if err != nil {
			slog.Warn("skipping unencodable tick",
				slog.String("symbol", tick.Symbol),
				slog.Any("error", err))
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}
