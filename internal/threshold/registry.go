package threshold

import (
	"fmt"
	"sync"

	"market_sentry/internal/domain"
)

// Frequency-level defaults used when no specific entry exists.
const (
	DefaultMinute = 2.0
	DefaultDaily  = 3.0
	DefaultWeekly = 5.0
)

// Registry maps (symbol, market, frequency) to a percentage threshold.
// It is built once from static configuration and supports concurrent
// reads with occasional runtime updates.
type Registry struct {
	mu         sync.RWMutex
	thresholds map[string]float64
	names      map[string]string // "MARKET_SYMBOL" -> display name
}

// Entry seeds one threshold at construction time.
type Entry struct {
	Instrument domain.InstrumentSpec
	Frequency  domain.Frequency
}

// NewRegistry builds a registry from configured instruments. Entries with
// a zero threshold fall through to the frequency default at lookup time.
func NewRegistry(entries []Entry) *Registry {
	r := &Registry{
		thresholds: make(map[string]float64),
		names:      make(map[string]string),
	}
	for _, e := range entries {
		if e.Instrument.Threshold > 0 {
			r.thresholds[cacheKey(e.Instrument.Symbol, e.Instrument.Market, e.Frequency)] = e.Instrument.Threshold
		}
		if e.Instrument.Name != "" {
			r.names[e.Instrument.Key()] = e.Instrument.Name
		}
	}
	return r
}

func cacheKey(symbol, market string, freq domain.Frequency) string {
	return symbol + "_" + market + "_" + string(freq)
}

// Get returns the threshold for (symbol, market, frequency), falling back
// to the frequency default on a miss. It never fails.
func (r *Registry) Get(symbol, market string, freq domain.Frequency) float64 {
	r.mu.RLock()
	v, ok := r.thresholds[cacheKey(symbol, market, freq)]
	r.mu.RUnlock()
	if ok {
		return v
	}
	return DefaultFor(freq)
}

// DefaultFor returns the frequency-level default threshold.
func DefaultFor(freq domain.Frequency) float64 {
	switch freq {
	case domain.FrequencyDaily:
		return DefaultDaily
	case domain.FrequencyWeekly:
		return DefaultWeekly
	default:
		return DefaultMinute
	}
}

// Update upserts a threshold entry. Non-positive values are rejected:
// silently clamping would hide configuration mistakes.
func (r *Registry) Update(symbol, market string, freq domain.Frequency, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%w: got %v for %s/%s %s", domain.ErrInvalidThreshold, value, symbol, market, freq)
	}
	if !freq.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, string(freq))
	}
	r.mu.Lock()
	r.thresholds[cacheKey(symbol, market, freq)] = value
	r.mu.Unlock()
	return nil
}

// All returns a snapshot copy, safe for callers to iterate without holding
// any registry lock.
func (r *Registry) All() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.thresholds))
	for k, v := range r.thresholds {
		out[k] = v
	}
	return out
}

// DisplayName resolves the configured display name for an instrument,
// falling back to the symbol itself.
func (r *Registry) DisplayName(symbol, market string) string {
	r.mu.RLock()
	name, ok := r.names[market+"_"+symbol]
	r.mu.RUnlock()
	if ok {
		return name
	}
	return symbol
}
