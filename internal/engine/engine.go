package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"market_sentry/internal/bus"
	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/message"
	"market_sentry/internal/threshold"
)

// Historical lookback windows. Wide enough to tolerate non-trading days:
// two daily closes within ten calendar days, two weekly closes within
// five weeks.
const (
	dailyLookback  = 10 * 24 * time.Hour
	weeklyLookback = 35 * 24 * time.Hour
)

// SourceName identifies the engine as an envelope source.
const SourceName = "VolatilityEngine"

// Engine consumes price ticks, computes percentage change per instrument
// and frequency, and emits alert envelopes when a threshold is breached.
//
// Minute-frequency comparisons use an in-process last-seen cache: the first
// tick for a key is recorded and never alerts, every later tick compares
// against the immediately prior one (sliding window of size 1). Daily and
// weekly comparisons read the two most recent persisted closes instead,
// trading a store round-trip for durability across restarts.
type Engine struct {
	registry *threshold.Registry
	history  domain.PriceHistory
	bus      *bus.Bus
	metrics  *infra.Metrics

	mu       sync.Mutex
	lastSeen map[string]domain.PriceTick
}

// New creates an engine. history may be nil, in which case daily/weekly
// ticks never alert (no persisted closes to compare).
func New(registry *threshold.Registry, history domain.PriceHistory, b *bus.Bus) *Engine {
	return &Engine{
		registry: registry,
		history:  history,
		bus:      b,
		metrics:  infra.GlobalMetrics,
		lastSeen: make(map[string]domain.PriceTick),
	}
}

// Name implements the consumer contract.
func (e *Engine) Name() string {
	return SourceName
}

// Channels returns the bus channels the engine subscribes to.
func (e *Engine) Channels() []string {
	return []string{message.TypePriceData.Channel()}
}

// Process is the bus handler: decode the tick, analyze it, publish an
// alert envelope on breach. Per-tick failures are logged and swallowed so
// the hosting worker stays alive.
func (e *Engine) Process(env message.Envelope) error {
	tick, err := env.PriceTick()
	if err != nil {
		slog.Warn("dropping malformed price envelope",
			slog.String("message_id", env.ID),
			slog.Any("error", err))
		return nil
	}

	alert, err := e.Analyze(tick)
	if err != nil {
		slog.Error("volatility analysis failed",
			slog.String("symbol", tick.Symbol),
			slog.String("market", tick.Market),
			slog.Any("error", err))
		return nil
	}
	if alert == nil {
		return nil
	}

	alertEnv, err := message.NewAlert(SourceName, *alert)
	if err != nil {
		slog.Error("failed to wrap alert", slog.Any("error", err))
		return nil
	}
	if err := e.bus.Publish(message.TypeVolatilityAlert.Channel(), alertEnv); err != nil {
		slog.Error("failed to publish alert", slog.Any("error", err))
		return nil
	}

	e.metrics.RecordAlert()
	slog.Info("volatility alert emitted",
		slog.String("symbol", alert.Symbol),
		slog.String("frequency", string(alert.Frequency)),
		slog.Float64("change", alert.CurrentChange),
		slog.Float64("threshold", alert.Threshold))
	return nil
}

// Analyze evaluates one tick and returns an alert when the threshold is
// breached, nil otherwise. Insufficient history is not an error.
func (e *Engine) Analyze(tick domain.PriceTick) (*domain.Alert, error) {
	if err := tick.Validate(); err != nil {
		return nil, err
	}
	e.metrics.RecordTickAnalyzed()

	switch tick.Frequency {
	case domain.FrequencyMinute:
		return e.analyzeMinute(tick), nil
	case domain.FrequencyDaily, domain.FrequencyWeekly:
		return e.analyzeHistorical(tick)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, string(tick.Frequency))
	}
}

// analyzeMinute compares against the cached prior tick. The cache is
// always overwritten with the current tick, breached or not, and the
// single lock serializes concurrent writers for the same key.
func (e *Engine) analyzeMinute(tick domain.PriceTick) *domain.Alert {
	key := tick.Key()

	e.mu.Lock()
	prior, ok := e.lastSeen[key]
	e.lastSeen[key] = tick
	e.mu.Unlock()

	if !ok {
		// First observation for this instrument: nothing to compare.
		return nil
	}
	return e.evaluate(tick, tick.Close, prior.Close)
}

// analyzeHistorical compares the two most recent persisted closes up to
// the tick's timestamp. Fewer than two records means no alert is possible.
func (e *Engine) analyzeHistorical(tick domain.PriceTick) (*domain.Alert, error) {
	if e.history == nil {
		return nil, nil
	}

	lookback := dailyLookback
	if tick.Frequency == domain.FrequencyWeekly {
		lookback = weeklyLookback
	}

	end := tick.Timestamp
	records, err := e.history.GetHistorical(tick.Symbol, tick.Market, tick.Frequency, end.Add(-lookback), end)
	if err != nil {
		return nil, fmt.Errorf("history lookup for %s: %w", tick.Key(), err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	latest := records[len(records)-1]
	previous := records[len(records)-2]
	return e.evaluate(tick, latest.Close, previous.Close), nil
}

// evaluate applies the shared change computation and the inclusive
// threshold comparison. The emitted alert keeps the signed change; only
// the comparison uses the absolute value.
func (e *Engine) evaluate(tick domain.PriceTick, current, previous float64) *domain.Alert {
	change := ChangePercent(current, previous)

	limit := e.registry.Get(tick.Symbol, tick.Market, tick.Frequency)
	if abs(change) < limit {
		return nil
	}

	return &domain.Alert{
		Symbol:        tick.Symbol,
		Name:          e.registry.DisplayName(tick.Symbol, tick.Market),
		Market:        tick.Market,
		Frequency:     tick.Frequency,
		CurrentChange: change,
		Threshold:     limit,
		CurrentPrice:  current,
		PreviousPrice: previous,
		Timestamp:     time.Now().UTC(),
	}
}

// ChangePercent is the single shared primitive for percentage change:
// (current - previous) / previous * 100. A zero previous close yields
// exactly 0.0 rather than a division failure.
func ChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous * 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
