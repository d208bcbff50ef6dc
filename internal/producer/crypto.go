package producer

import (
	"context"
	"log/slog"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/message"
)

// CryptoProducer emits minute-frequency ticks for configured crypto pairs.
// Crypto trades around the clock, so every pass fetches every instrument.
type CryptoProducer struct {
	fetcher     domain.MarketFetcher
	instruments []domain.InstrumentSpec
	metrics     *infra.Metrics
}

// NewCryptoProducer creates a producer backed by a crypto market fetcher.
func NewCryptoProducer(fetcher domain.MarketFetcher, instruments []domain.InstrumentSpec) *CryptoProducer {
	return &CryptoProducer{
		fetcher:     fetcher,
		instruments: instruments,
		metrics:     infra.GlobalMetrics,
	}
}

// Name implements Producer.
func (p *CryptoProducer) Name() string {
	return "CryptoProducer"
}

// Produce fetches the latest tick per pair and wraps each into a
// price_data envelope.
func (p *CryptoProducer) Produce(ctx context.Context) ([]message.Envelope, error) {
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
