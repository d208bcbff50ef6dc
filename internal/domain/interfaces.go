package domain

import (
	"context"
	"time"
)

// InstrumentSpec describes one monitored instrument from configuration.
type InstrumentSpec struct {
	Name      string  `yaml:"name" json:"name"`
	Symbol    string  `yaml:"symbol" json:"symbol"`
	Market    string  `yaml:"market" json:"market"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// Key returns the instrument key "MARKET_SYMBOL".
func (s InstrumentSpec) Key() string {
	return s.Market + "_" + s.Symbol
}

// MarketFetcher retrieves price data from an external market-data vendor.
// Implementations live in infra; the core only depends on this contract.
type MarketFetcher interface {
	// FetchRealtime returns the most recent tick per requested instrument.
	// Instruments that could not be fetched are simply absent from the
	// result; a non-nil error means the whole batch failed.
	FetchRealtime(ctx context.Context, instruments []InstrumentSpec) ([]PriceTick, error)

	// FetchHistorical returns bars at the given frequency in the
	// [start, end] window, ascending by timestamp.
	FetchHistorical(ctx context.Context, instrument InstrumentSpec, freq Frequency, start, end time.Time) ([]PriceTick, error)
}

// PriceHistory is the query contract of the persistent price store that
// the volatility engine consumes for daily/weekly comparisons.
type PriceHistory interface {
	// GetLatest returns the most recent persisted tick, or nil if none.
	GetLatest(symbol, market string, freq Frequency) (*PriceTick, error)

	// GetHistorical returns persisted ticks in [start, end] ascending
	// by timestamp.
	GetHistorical(symbol, market string, freq Frequency, start, end time.Time) ([]PriceTick, error)
}

// PriceAppender is the write half of the price store, used by the
// storage sink. Appends are not deduplicated at this layer.
type PriceAppender interface {
	SavePrice(tick PriceTick) error
}

// Notifier delivers rendered messages to an external chat webhook.
type Notifier interface {
	SendAlert(alert Alert) error
	SendStartup() error
	SendShutdown(at time.Time) error
}
