package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/message"
)

// HistoryProducer emits daily- or weekly-frequency bars. Each pass fetches
// a short calendar window per instrument: older bars are published as
// historical_price_data (backfill for the store), the most recent one as
// price_data so the volatility engine evaluates it.
type HistoryProducer struct {
	fetcher     domain.MarketFetcher
	instruments []domain.InstrumentSpec
	freq        domain.Frequency
	lookback    time.Duration
	metrics     *infra.Metrics
}

// NewHistoryProducer creates a backfilling producer for freq, which must
// be daily or weekly.
func NewHistoryProducer(fetcher domain.MarketFetcher, instruments []domain.InstrumentSpec, freq domain.Frequency) (*HistoryProducer, error) {
	var lookback time.Duration
	switch freq {
	case domain.FrequencyDaily:
		lookback = 10 * 24 * time.Hour
	case domain.FrequencyWeekly:
		lookback = 35 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: history producer needs daily or weekly, got %q",
			domain.ErrInvalidFrequency, string(freq))
	}
	return &HistoryProducer{
		fetcher:     fetcher,
		instruments: instruments,
		freq:        freq,
		lookback:    lookback,
		metrics:     infra.GlobalMetrics,
	}, nil
}

// Name implements Producer.
func (p *HistoryProducer) Name() string {
	if p.freq == domain.FrequencyWeekly {
		return "WeeklyHistoryProducer"
	}
	return "DailyHistoryProducer"
}

// Produce fetches recent bars per instrument. A failing instrument is
// skipped; the pass continues with the rest.
func (p *HistoryProducer) Produce(ctx context.Context) ([]message.Envelope, error) {
	if len(p.instruments) == 0 {
		return nil, nil
	}

	end := time.Now().UTC()
	start := end.Add(-p.lookback)

	var envs []message.Envelope
	for _, inst := range p.instruments {
		bars, err := p.fetcher.FetchHistorical(ctx, inst, p.freq, start, end)
		if err != nil {
			p.metrics.RecordFetch(false)
			slog.Warn("historical fetch failed",
				slog.String("producer", p.Name()),
				slog.String("symbol", inst.Symbol),
				slog.Any("error", err))
			continue
		}
		p.metrics.RecordFetch(true)

		for i, bar := range bars {
			var env message.Envelope
			if i == len(bars)-1 {
				env, err = message.NewPriceData(p.Name(), bar)
			} else {
				env, err = message.NewHistoricalPriceData(p.Name(), bar)
			}
			if err != nil {
				slog.Warn("skipping unencodable bar",
					slog.String("symbol", bar.Symbol),
					slog.Any("error", err))
				continue
			}
			envs = append(envs, env)
		}
	}
	return envs, nil
}
