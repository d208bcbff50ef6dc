package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PriceTick is a single OHLCV observation for an instrument.
// It is an immutable value passed between components over the bus.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Market    string    `json:"market"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Frequency Frequency `json:"-"`
}

// tickWire carries the frequency as its canonical short code ("1m"/"1d"/"1w").
type tickWire struct {
	Symbol    string    `json:"symbol"`
	Market    string    `json:"market"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Frequency string    `json:"frequency"`
}

// MarshalJSON writes the wire shape with the short frequency code.
func (t PriceTick) MarshalJSON() ([]byte, error) {
	return json.Marshal(tickWire{
		Symbol:    t.Symbol,
		Market:    t.Market,
		Timestamp: t.Timestamp.UTC(),
		Open:      t.Open,
		High:      t.High,
		Low:       t.Low,
		Close:     t.Close,
		Volume:    t.Volume,
		Frequency: t.Frequency.Code(),
	})
}

// UnmarshalJSON parses the wire shape, accepting both short codes and
// long frequency names.
func (t *PriceTick) UnmarshalJSON(data []byte) error {
	var w tickWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	freq, err := ParseFrequency(w.Frequency)
	if err != nil {
		return err
	}
	*t = PriceTick{
		Symbol:    w.Symbol,
		Market:    w.Market,
		Timestamp: w.Timestamp.UTC(),
		Open:      w.Open,
		High:      w.High,
		Low:       w.Low,
		Close:     w.Close,
		Volume:    w.Volume,
		Frequency: freq,
	}
	return nil
}

// Key returns the instrument key "MARKET_SYMBOL" that uniquely identifies
// a tradable instrument across exchanges.
func (t PriceTick) Key() string {
	return t.Market + "_" + t.Symbol
}

// Validate rejects ticks that cannot be analyzed or persisted.
func (t PriceTick) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrMalformedTick)
	}
	if t.Market == "" {
		return fmt.Errorf("%w: empty market", ErrMalformedTick)
	}
	if !t.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(t.Frequency))
	}
	if t.Open < 0 || t.High < 0 || t.Low < 0 || t.Close < 0 {
		return fmt.Errorf("%w: negative price", ErrMalformedTick)
	}
	if t.Volume < 0 {
		return fmt.Errorf("%w: negative volume", ErrMalformedTick)
	}
	return nil
}
